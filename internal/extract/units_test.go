package extract

import "testing"

func TestFahrenheitToCelsius(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		want float64
	}{
		{name: "boiling fixture", f: 100, want: 37.8},
		{name: "scenario value", f: 72, want: 22.2},
		{name: "freezing point", f: 32, want: 0},
		{name: "below zero", f: -40, want: -40},
		{name: "rounds to one decimal", f: 73, want: 22.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FahrenheitToCelsius(tt.f); got != tt.want {
				t.Errorf("FahrenheitToCelsius(%v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}

func TestWindConversions(t *testing.T) {
	if got := MphToKmh(10); got != 16.1 {
		t.Errorf("MphToKmh(10) = %v, want 16.1", got)
	}
	if got := MphToKmh(0); got != 0 {
		t.Errorf("MphToKmh(0) = %v, want 0", got)
	}
	if got := MsToKmh(5); got != 18.0 {
		t.Errorf("MsToKmh(5) = %v, want 18.0", got)
	}
	if got := MsToKmh(1.5); got != 5.4 {
		t.Errorf("MsToKmh(1.5) = %v, want 5.4", got)
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{22.25, 22.3},
		{22.24, 22.2},
		{-5.55, -5.6},
		{7, 7},
	}

	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package extract

import (
	"errors"
	"testing"

	"github.com/mwesner/msn-weather-service/internal/models"
)

func TestFromHeuristics_FullPage(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
<span class="tempValue">72°F</span>
<div class="conditionText">Partly Cloudy</div>
<div class="detail">Humidity: 65%</div>
<div class="detail">Wind: 10 mph</div>
</body></html>`)

	r, err := fromHeuristics(doc)
	if err != nil {
		t.Fatalf("fromHeuristics() error = %v", err)
	}
	if r.Temperature != 22.2 {
		t.Errorf("Temperature = %v, want 22.2", r.Temperature)
	}
	if r.Condition != "Partly Cloudy" {
		t.Errorf("Condition = %q, want %q", r.Condition, "Partly Cloudy")
	}
	if r.Humidity != 65 {
		t.Errorf("Humidity = %d, want 65", r.Humidity)
	}
	if r.WindSpeed != 16.1 {
		t.Errorf("WindSpeed = %v, want 16.1", r.WindSpeed)
	}
}

func TestHeuristicTemperature_NoFMarkerIsCelsius(t *testing.T) {
	doc := docFromHTML(t, `<html><body><span class="temp">21°</span></body></html>`)

	got, err := heuristicTemperature(doc)
	if err != nil {
		t.Fatalf("heuristicTemperature() error = %v", err)
	}
	if got != 21.0 {
		t.Errorf("heuristicTemperature() = %v, want 21.0", got)
	}
}

func TestHeuristicTemperature_SelectorOrder(t *testing.T) {
	// The span selector outranks the div selector even when the div comes
	// first in document order.
	doc := docFromHTML(t, `<html><body>
<div class="tempSecondary">50°F</div>
<span class="tempValue">72°F</span>
</body></html>`)

	got, err := heuristicTemperature(doc)
	if err != nil {
		t.Fatalf("heuristicTemperature() error = %v", err)
	}
	if got != 22.2 {
		t.Errorf("heuristicTemperature() = %v, want 22.2 (span wins over div)", got)
	}
}

func TestHeuristicTemperature_Missing(t *testing.T) {
	// Scenario: condition text exists but no numeric temperature anywhere.
	doc := docFromHTML(t, `<html><body><div class="caption">Partly Cloudy</div></body></html>`)

	if _, err := heuristicTemperature(doc); !errors.Is(err, models.ErrParsing) {
		t.Fatalf("heuristicTemperature() error = %v, want ErrParsing", err)
	}
	if _, err := fromHeuristics(doc); !errors.Is(err, models.ErrParsing) {
		t.Fatalf("fromHeuristics() error = %v, want ErrParsing", err)
	}
}

func TestHeuristicCondition_VocabularyFallback(t *testing.T) {
	// No element matches the condition selectors; the page text scan finds a
	// known vocabulary term.
	doc := docFromHTML(t, `<html><body><p>Skies will stay Overcast through the evening.</p></body></html>`)

	if got := heuristicCondition(doc); got != "Overcast" {
		t.Errorf("heuristicCondition() = %q, want %q", got, "Overcast")
	}
}

func TestHeuristicCondition_SkipsShortAndNumericText(t *testing.T) {
	// A digits-only or too-short match is noise; the probe moves on to the
	// next candidate under the same selector.
	doc := docFromHTML(t, `<html><body>
<div class="conditionBadge">72</div>
<div class="conditionText">ok</div>
<div class="conditionLabel">Light Rain</div>
</body></html>`)

	if got := heuristicCondition(doc); got != "Light Rain" {
		t.Errorf("heuristicCondition() = %q, want %q", got, "Light Rain")
	}
}

func TestHeuristicHumidity_ParentProbe(t *testing.T) {
	// No "Humidity: N%" phrasing in the text; the percent lives in a text
	// node whose enclosing element names humidity in its markup.
	doc := docFromHTML(t, `<html><body><span class="humidityValue">65%</span></body></html>`)

	if got := heuristicHumidity(doc); got != 65 {
		t.Errorf("heuristicHumidity() = %d, want 65", got)
	}
}

func TestHeuristicHumidity_IgnoresUnrelatedPercent(t *testing.T) {
	// A percent with no humidity context anywhere falls back to the default.
	doc := docFromHTML(t, `<html><body><span class="chanceValue">30%</span></body></html>`)

	if got := heuristicHumidity(doc); got != 50 {
		t.Errorf("heuristicHumidity() = %d, want 50 (default)", got)
	}
}

func TestHeuristicWindSpeed_Units(t *testing.T) {
	tests := []struct {
		name string
		html string
		want float64
	}{
		{name: "mph converts", html: `<html><body>Wind: 10 mph</body></html>`, want: 16.1},
		{name: "m/s converts", html: `<html><body>Wind: 5 m/s</body></html>`, want: 18.0},
		{name: "km/h passes through", html: `<html><body>Wind: 12.5 km/h</body></html>`, want: 12.5},
		{name: "trailing wind phrasing", html: `<html><body>Gusty, 10 mph wind expected</body></html>`, want: 16.1},
		{name: "no wind text defaults", html: `<html><body>calm day</body></html>`, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFromHTML(t, tt.html)
			if got := heuristicWindSpeed(doc); got != tt.want {
				t.Errorf("heuristicWindSpeed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromHeuristics_Defaults(t *testing.T) {
	// Only a temperature on the page: every other quantity takes its default.
	doc := docFromHTML(t, `<html><body><span class="temp">70 F</span></body></html>`)

	r, err := fromHeuristics(doc)
	if err != nil {
		t.Fatalf("fromHeuristics() error = %v", err)
	}
	if r.Temperature != 21.1 {
		t.Errorf("Temperature = %v, want 21.1", r.Temperature)
	}
	if r.Condition != "Unknown" {
		t.Errorf("Condition = %q, want %q", r.Condition, "Unknown")
	}
	if r.Humidity != 50 {
		t.Errorf("Humidity = %d, want 50", r.Humidity)
	}
	if r.WindSpeed != 0.0 {
		t.Errorf("WindSpeed = %v, want 0.0", r.WindSpeed)
	}
}

package extract

import "math"

// round1 rounds to one decimal place, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// FahrenheitToCelsius converts a Fahrenheit temperature to Celsius, rounded
// to one decimal place.
func FahrenheitToCelsius(f float64) float64 {
	return round1((f - 32) * 5 / 9)
}

// MphToKmh converts miles per hour to km/h, rounded to one decimal place.
func MphToKmh(v float64) float64 {
	return round1(v * 1.60934)
}

// MsToKmh converts metres per second to km/h, rounded to one decimal place.
func MsToKmh(v float64) float64 {
	return round1(v * 3.6)
}

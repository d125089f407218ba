package models

import (
	"fmt"
	"strings"
)

// Location identifies a place by city and country, with optional coordinates
// when the lookup originated from a reverse geocode.
type Location struct {
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// NewLocation builds a name-based Location. City and country are trimmed and
// must be non-empty.
func NewLocation(city, country string) (Location, error) {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if city == "" || country == "" {
		return Location{}, fmt.Errorf("%w: city and country are required", ErrInvalidLocation)
	}
	return Location{City: city, Country: country}, nil
}

// WithCoordinates returns a copy of the location carrying the given
// coordinates. Used by the reverse geocoder so the original query point
// survives into the response.
func (l Location) WithCoordinates(lat, lon float64) Location {
	l.Latitude = &lat
	l.Longitude = &lon
	return l
}

// PathSegment returns the "city,country" form used both as the upstream URL
// path segment and as the location part of cache keys. Case is preserved.
func (l Location) PathSegment() string {
	return l.City + "," + l.Country
}

// WeatherReading is a normalized weather observation. Temperature is in
// Celsius and WindSpeed in km/h, both rounded to one decimal place by the
// extraction layer. Never mutated after construction.
type WeatherReading struct {
	Location    Location `json:"location"`
	Temperature float64  `json:"temperature"`
	Condition   string   `json:"condition"`
	Humidity    int      `json:"humidity"`
	WindSpeed   float64  `json:"wind_speed"`
}

// NewWeatherReading range-checks extracted values and builds a reading.
// Humidity outside [0,100] or a negative wind speed is a Parsing failure,
// never silently clamped.
func NewWeatherReading(loc Location, temperature float64, condition string, humidity int, windSpeed float64) (WeatherReading, error) {
	if humidity < 0 || humidity > 100 {
		return WeatherReading{}, fmt.Errorf("%w: humidity %d outside [0, 100]", ErrParsing, humidity)
	}
	if windSpeed < 0 {
		return WeatherReading{}, fmt.Errorf("%w: negative wind speed %g", ErrParsing, windSpeed)
	}
	return WeatherReading{
		Location:    loc,
		Temperature: temperature,
		Condition:   condition,
		Humidity:    humidity,
		WindSpeed:   windSpeed,
	}, nil
}

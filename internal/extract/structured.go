package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// statePayload mirrors the path WeatherData._@STATE@_.forecast[0].hourly[0]
// inside the page's embedded JSON blocks. Anything that fails to decode into
// this shape simply doesn't match.
type statePayload struct {
	WeatherData struct {
		State struct {
			Forecast []struct {
				Hourly []hourlyEntry `json:"hourly"`
			} `json:"forecast"`
		} `json:"_@STATE@_"`
	} `json:"WeatherData"`
}

// hourlyEntry keeps fields raw because the feed mixes types: humidity may be
// "65%" or 65, windSpeed "10" or 10.
type hourlyEntry struct {
	Temperature json.RawMessage `json:"temperature"`
	Cap         json.RawMessage `json:"cap"`
	Summary     json.RawMessage `json:"summary"`
	Humidity    json.RawMessage `json:"humidity"`
	WindSpeed   json.RawMessage `json:"windSpeed"`
}

// fromStructuredPayload scans every <script type="application/json"> block
// for the known forecast shape and parses the first hourly entry of the first
// block that matches. Malformed blocks, blocks missing the path, and blocks
// with garbage field values are skipped, never fatal; ok is false only when
// every block has been exhausted.
func fromStructuredPayload(doc *goquery.Document) (Reading, bool) {
	var reading Reading
	found := false
	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		r, err := parseStateBlock(s.Text())
		if err != nil {
			return true
		}
		reading = r
		found = true
		return false
	})
	return reading, found
}

func parseStateBlock(raw string) (Reading, error) {
	var payload statePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Reading{}, err
	}
	forecast := payload.WeatherData.State.Forecast
	if len(forecast) == 0 || len(forecast[0].Hourly) == 0 {
		return Reading{}, fmt.Errorf("forecast path not present")
	}

	current := forecast[0].Hourly[0]

	// Temperature arrives in Fahrenheit, wind speed in mph. Missing fields
	// fall back to defaults; unparseable ones disqualify the block.
	tempF, err := numericField(current.Temperature, 0)
	if err != nil {
		return Reading{}, err
	}
	condition, err := conditionField(current.Cap, current.Summary)
	if err != nil {
		return Reading{}, err
	}
	humidity, err := percentField(current.Humidity, "50")
	if err != nil {
		return Reading{}, err
	}
	windMph, err := numericField(current.WindSpeed, 0)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Temperature: FahrenheitToCelsius(tempF),
		Condition:   condition,
		Humidity:    humidity,
		WindSpeed:   MphToKmh(windMph),
	}, nil
}

// numericField parses a raw JSON value that may be a number or a numeric
// string. A nil (absent) field yields def.
func numericField(raw json.RawMessage, def float64) (float64, error) {
	if raw == nil {
		return def, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// percentField parses an integer that may carry a trailing percent marker,
// from either a JSON string or a JSON number. A nil field yields def.
func percentField(raw json.RawMessage, def string) (int, error) {
	s := def
	if raw != nil {
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "%")
	return strconv.Atoi(strings.TrimSpace(s))
}

// conditionField resolves the condition text with presence-based fallback:
// cap, then summary, then "Unknown".
func conditionField(capRaw, summaryRaw json.RawMessage) (string, error) {
	for _, raw := range []json.RawMessage{capRaw, summaryRaw} {
		if raw == nil {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String(), nil
		}
		return "", fmt.Errorf("condition field is not text")
	}
	return "Unknown", nil
}

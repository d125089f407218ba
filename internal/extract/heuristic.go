package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// Selector lists probe class-name and attribute conventions the page has used
// for each quantity. Order matters: earlier selectors are trusted first.
var (
	temperatureSelectors = []string{
		`span[class*="temp"]`,
		`div[class*="temp"]`,
		`[data-testid*="temperature"]`,
		`span[class*="CurrentConditions"]`,
	}
	conditionSelectors = []string{
		`[class*="condition"]`,
		`[class*="weather"]`,
		`[data-testid*="condition"]`,
		`div[class*="caption"]`,
	}

	// Last-resort condition vocabulary, scanned over the full page text.
	conditionVocabulary = []string{
		"Sunny",
		"Cloudy",
		"Partly Cloudy",
		"Rainy",
		"Clear",
		"Overcast",
		"Thunderstorm",
	}

	numberPattern   = regexp.MustCompile(`-?\d+\.?\d*`)
	percentPattern  = regexp.MustCompile(`(\d+)%`)
	humidityPattern = regexp.MustCompile(`(?i)humidity[:\s]*(\d+)%|(\d+)%\s*humidity`)
	windPattern     = regexp.MustCompile(`(?i)wind[:\s]*(\d+\.?\d*)\s*(mph|km/h|m/s)|(\d+\.?\d*)\s*(mph|km/h|m/s)\s*wind`)
)

// fromHeuristics extracts a reading from the rendered document when no
// structured payload was found. Humidity, wind speed, and condition all have
// defaults; a temperature that cannot be located anywhere is a Parsing
// failure because the reading would be meaningless without it.
func fromHeuristics(doc *goquery.Document) (Reading, error) {
	temperature, err := heuristicTemperature(doc)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Temperature: temperature,
		Condition:   heuristicCondition(doc),
		Humidity:    heuristicHumidity(doc),
		WindSpeed:   heuristicWindSpeed(doc),
	}, nil
}

// heuristicTemperature probes the temperature selectors for the first element
// whose text carries a signed numeric token. An F marker in the surrounding
// text means Fahrenheit; otherwise the value is taken as Celsius already.
func heuristicTemperature(doc *goquery.Document) (float64, error) {
	for _, selector := range temperatureSelectors {
		value, found := 0.0, false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			token := numberPattern.FindString(text)
			if token == "" {
				return true
			}
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return true
			}
			if strings.Contains(text, "F") {
				v = (v - 32) * 5 / 9
			}
			value, found = round1(v), true
			return false
		})
		if found {
			return value, nil
		}
	}
	return 0, fmt.Errorf("%w: could not extract temperature from page", models.ErrParsing)
}

// heuristicCondition probes the condition selectors for the first plausible
// text (longer than two characters, not purely digits), then falls back to
// the vocabulary scan, then to "Unknown".
func heuristicCondition(doc *goquery.Document) string {
	for _, selector := range conditionSelectors {
		condition, found := "", false
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" || utf8.RuneCountInString(text) <= 2 || isDigits(text) {
				return true
			}
			condition, found = text, true
			return false
		})
		if found {
			return condition
		}
	}

	pageText := doc.Text()
	for _, term := range conditionVocabulary {
		if strings.Contains(pageText, term) {
			return term
		}
	}
	return "Unknown"
}

// heuristicHumidity looks for "Humidity: 65%" / "65% humidity" phrasings in
// the page text, then for any percent-bearing text node whose enclosing
// element mentions humidity. Defaults to 50.
func heuristicHumidity(doc *goquery.Document) int {
	if m := humidityPattern.FindStringSubmatch(doc.Text()); m != nil {
		token := m[1]
		if token == "" {
			token = m[2]
		}
		if v, err := strconv.Atoi(token); err == nil {
			return v
		}
	}

	value, found := 0, false
	doc.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		el.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if goquery.NodeName(c) != "#text" {
				return true
			}
			text := c.Text()
			if !percentPattern.MatchString(text) {
				return true
			}
			markup, err := goquery.OuterHtml(el)
			if err != nil || !strings.Contains(strings.ToLower(markup), "humid") {
				return true
			}
			m := percentPattern.FindStringSubmatch(text)
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return true
			}
			value, found = v, true
			return false
		})
		return !found
	})
	if found {
		return value
	}
	return 50
}

// heuristicWindSpeed looks for "Wind: 10 mph" / "10 km/h wind" phrasings in
// the page text and normalizes the unit to km/h. Defaults to 0.
func heuristicWindSpeed(doc *goquery.Document) float64 {
	m := windPattern.FindStringSubmatch(doc.Text())
	if m == nil {
		return 0.0
	}
	token, unit := m[1], m[2]
	if token == "" {
		token, unit = m[3], m[4]
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0.0
	}
	switch strings.ToLower(unit) {
	case "mph":
		return MphToKmh(v)
	case "m/s":
		return MsToKmh(v)
	default:
		return round1(v)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// Strategy names the extraction path that produced a reading. Used as a
// metric label by the client.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyHeuristic  Strategy = "heuristic"
)

// Reading holds normalized extraction output: temperature in Celsius, wind
// speed in km/h, both rounded to one decimal. Range validation happens later
// at reading construction, not here.
type Reading struct {
	Temperature float64
	Condition   string
	Humidity    int
	WindSpeed   float64
}

// Parse turns raw page markup into a Reading. Extraction strategies run in
// fixed priority order: the structured JSON payload first, heuristic DOM and
// text probing second. The structured path short-circuits the heuristics
// whenever it recognizes the page.
func Parse(html string) (Reading, Strategy, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Reading{}, "", fmt.Errorf("%w: parse document: %v", models.ErrParsing, err)
	}
	if r, ok := fromStructuredPayload(doc); ok {
		return r, StrategyStructured, nil
	}
	r, err := fromHeuristics(doc)
	if err != nil {
		return Reading{}, StrategyHeuristic, err
	}
	return r, StrategyHeuristic, nil
}

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mwesner/msn-weather-service/internal/models"
	"github.com/mwesner/msn-weather-service/internal/observability"
)

// Geocoder resolves coordinates to a named location.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (models.Location, error)
}

// NominatimClient implements Geocoder against the OSM Nominatim reverse API.
type NominatimClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

// NewNominatimClient creates a reverse geocoding client. baseURL defaults to
// the public Nominatim instance; Nominatim's usage policy requires a
// descriptive User-Agent.
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration) *NominatimClient {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org/reverse"
	}
	if userAgent == "" {
		userAgent = "msn-weather-service"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}
}

// nominatimResponse is the subset of the jsonv2 reverse response we read.
// Nominatim reports "Unable to geocode" through the error field with a 200.
type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		Country string `json:"country"`
	} `json:"address"`
}

// Reverse resolves (lat, lon) to a Location. City is taken from the first
// populated field of city, town, village, county, defaulting to "Unknown";
// country defaults to "Unknown". No candidate address is a LocationNotFound
// failure; any other geocoder problem is a Resolution failure.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (models.Location, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{
		"lat":             {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":             {strconv.FormatFloat(lon, 'f', -1, 64)},
		"format":          {"jsonv2"},
		"accept-language": {"en"},
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: create request: %v", models.ErrResolution, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		observability.GeocodeLookupsTotal.WithLabelValues("error").Inc()
		return models.Location{}, fmt.Errorf("%w: reverse geocode request: %v", models.ErrResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		observability.GeocodeLookupsTotal.WithLabelValues("not_found").Inc()
		return models.Location{}, fmt.Errorf("%w: no address for coordinates %g, %g", models.ErrLocationNotFound, lat, lon)
	}
	if resp.StatusCode != http.StatusOK {
		observability.GeocodeLookupsTotal.WithLabelValues("error").Inc()
		return models.Location{}, fmt.Errorf("%w: nominatim status %d", models.ErrResolution, resp.StatusCode)
	}

	var nr nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		observability.GeocodeLookupsTotal.WithLabelValues("error").Inc()
		return models.Location{}, fmt.Errorf("%w: decode response: %v", models.ErrResolution, err)
	}
	if nr.Error != "" {
		observability.GeocodeLookupsTotal.WithLabelValues("not_found").Inc()
		return models.Location{}, fmt.Errorf("%w: no address for coordinates %g, %g", models.ErrLocationNotFound, lat, lon)
	}

	city := firstNonEmpty(nr.Address.City, nr.Address.Town, nr.Address.Village, nr.Address.County, "Unknown")
	country := firstNonEmpty(nr.Address.Country, "Unknown")

	observability.GeocodeLookupsTotal.WithLabelValues("success").Inc()
	loc := models.Location{City: city, Country: country}
	return loc.WithCoordinates(lat, lon), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

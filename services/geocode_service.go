package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Geocoding is assistive UI plumbing, not a correctness-critical path:
// every failure degrades to an empty result or a default coordinate,
// never an error. Callers are expected to debounce; the client itself
// does not rate-limit.

// Coordinates is a bare lat/lng pair in decimal degrees
type Coordinates struct {
	Lat float64
	Lng float64
}

// DefaultCoordinates is returned when an address cannot be resolved
var DefaultCoordinates = Coordinates{Lat: -14.235, Lng: -51.9253}

// CityResult is one place-search candidate
type CityResult struct {
	Name  string
	State string
	Lat   float64
	Lng   float64
}

// GeocodeService resolves free-text place names against a
// Nominatim-compatible place search
type GeocodeService struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewGeocodeService creates a geocode client. language tags every
// request (Accept-Language and query parameter).
func NewGeocodeService(baseURL, language string) *GeocodeService {
	return &GeocodeService{
		baseURL:  baseURL,
		language: language,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// nominatimResult is the wire shape of one place-search hit
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     *struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

func (r nominatimResult) cityName() string {
	if r.Address != nil {
		for _, name := range []string{r.Address.City, r.Address.Town, r.Address.Village, r.Address.Municipality} {
			if name != "" {
				return name
			}
		}
	}
	return strings.TrimSpace(strings.SplitN(r.DisplayName, ",", 2)[0])
}

func (r nominatimResult) state() string {
	if r.Address != nil {
		return r.Address.State
	}
	return ""
}

// SearchCities returns up to 5 deduplicated candidates for a partial
// place name. Queries shorter than 2 characters after trimming return
// an empty list without issuing a request.
func (s *GeocodeService) SearchCities(ctx context.Context, query string) []CityResult {
	if len(strings.TrimSpace(query)) < 2 {
		return []CityResult{}
	}

	rows, err := s.search(ctx, query, 8)
	if err != nil {
		return []CityResult{}
	}

	// Deduplicate by city+state, keeping the first occurrence
	seen := make(map[string]bool)
	results := make([]CityResult, 0, len(rows))
	for _, row := range rows {
		lat, latErr := strconv.ParseFloat(row.Lat, 64)
		lng, lngErr := strconv.ParseFloat(row.Lon, 64)
		if latErr != nil || lngErr != nil {
			continue
		}

		name := row.cityName()
		state := row.state()
		key := strings.ToLower(name) + "|" + strings.ToLower(state)
		if seen[key] {
			continue
		}
		seen[key] = true

		results = append(results, CityResult{Name: name, State: state, Lat: lat, Lng: lng})
		if len(results) == 5 {
			break
		}
	}
	return results
}

// GeocodeAddress resolves a full address to its best-match coordinates,
// falling back to DefaultCoordinates when nothing matches
func (s *GeocodeService) GeocodeAddress(ctx context.Context, address string) Coordinates {
	if strings.TrimSpace(address) == "" {
		return DefaultCoordinates
	}

	rows, err := s.search(ctx, address, 1)
	if err != nil || len(rows) == 0 {
		return DefaultCoordinates
	}

	lat, latErr := strconv.ParseFloat(rows[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(rows[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return DefaultCoordinates
	}
	return Coordinates{Lat: lat, Lng: lng}
}

func (s *GeocodeService) search(ctx context.Context, query string, limit int) ([]nominatimResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")
	params.Set("accept-language", s.language)

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", s.language)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Status: resp.StatusCode, Message: "place search failed"}
	}

	var rows []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

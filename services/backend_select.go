package services

import (
	"log"

	"github.com/fieldops/field-service-api/config"
)

// Backend bundles the gateway services the application state store
// depends on.
type Backend struct {
	Auth        AuthService
	Data        DataService
	Technicians TechnicianService
	Geocode     *GeocodeService
}

// NewBackend selects the backend implementation at startup: the real
// HTTP gateway when an API base URL is configured, otherwise the
// deterministic in-memory mock for local development. Geocoding always
// talks to the configured place search; it is fail-soft either way.
func NewBackend(cfg *config.Config, initialToken string) Backend {
	geocode := NewGeocodeService(cfg.NominatimURL, cfg.GeocodeLanguage)

	if cfg.APIBaseURL == "" {
		log.Println("API_BASE_URL not set, using in-memory mock backend")
		mock := NewMockBackend()
		return Backend{
			Auth:        NewMockAuthService(mock),
			Data:        mock,
			Technicians: mock,
			Geocode:     geocode,
		}
	}

	auth := NewHTTPAuthService(cfg.APIBaseURL, initialToken)
	return Backend{
		Auth:        auth,
		Data:        NewHTTPDataService(cfg.APIBaseURL, auth.AccessToken),
		Technicians: NewHTTPTechnicianService(cfg.APIBaseURL, auth.AccessToken),
		Geocode:     geocode,
	}
}

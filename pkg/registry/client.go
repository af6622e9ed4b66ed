// Package registry fetches qualifying health facilities and their countries
// from the facility registry (IFRC GO style API).
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reachmap/access-cli/internal/config"
	"github.com/reachmap/access-cli/internal/model"
	"github.com/reachmap/access-cli/internal/resilience"
)

// Snapshot is one read of the registry: every country that has at least one
// qualifying unit, and its facilities with valid coordinates grouped by
// country display name. A country can appear in Countries with no entry in
// Facilities when all of its units carried unusable coordinates.
type Snapshot struct {
	Countries  map[string]model.Country
	Facilities map[string][]model.Facility
}

// Client reads the facility registry.
type Client struct {
	cfg        config.RegistryConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a registry client from configuration.
func New(cfg config.RegistryConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
	if c.limiter.Limit() <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// localUnitsResponse is one page of /public-local-units/. Next carries the
// absolute URL of the following page, null on the last one.
type localUnitsResponse struct {
	Count   int         `json:"count"`
	Next    *string     `json:"next"`
	Results []localUnit `json:"results"`
}

type localUnit struct {
	ID              int64  `json:"id"`
	LocalBranchName string `json:"local_branch_name"`
	TypeDetails     struct {
		Code int `json:"code"`
	} `json:"type_details"`
	CountryDetails *struct {
		Name string `json:"name"`
		ISO  string `json:"iso"`
	} `json:"country_details"`
	LocationGeoJSON struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"location_geojson"`
}

// FetchAll reads every qualifying unit from the registry, following the
// page chain to the end. Units without country details or with the wrong
// type code are skipped; units with missing or out-of-range coordinates keep
// their country in the snapshot but contribute no facility. An error is
// returned only when the registry itself cannot be read — the one condition
// nothing downstream can survive.
func (c *Client) FetchAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Countries:  make(map[string]model.Country),
		Facilities: make(map[string][]model.Facility),
	}

	params := url.Values{"limit": {strconv.Itoa(c.cfg.Limit)}}
	next := c.cfg.BaseURL + "/public-local-units/?" + params.Encode()

	units, dropped := 0, 0
	for next != "" {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		units += len(page.Results)
		dropped += c.mergePage(snap, page)
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	zap.L().Info("registry snapshot fetched",
		zap.Int("countries", len(snap.Countries)),
		zap.Int("units", units),
		zap.Int("dropped_invalid_coords", dropped),
	)
	return snap, nil
}

// fetchPage retrieves and decodes one page.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (*localUnitsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "registry: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "registry: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("registry: returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read body")
	}

	var payload localUnitsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "registry: parse response")
	}
	return &payload, nil
}

// mergePage folds one page into the snapshot and returns the number of
// facilities dropped for unusable coordinates.
func (c *Client) mergePage(snap *Snapshot, payload *localUnitsResponse) int {
	dropped := 0
	for _, unit := range payload.Results {
		if unit.TypeDetails.Code != c.cfg.FacilityTypeCode || unit.CountryDetails == nil {
			continue
		}
		name := unit.CountryDetails.Name
		if _, ok := snap.Countries[name]; !ok {
			snap.Countries[name] = model.Country{Name: name, ISO: unit.CountryDetails.ISO}
		}

		lon, lat, ok := validCoordinates(unit.LocationGeoJSON.Coordinates)
		if !ok {
			dropped++
			continue
		}

		facName := unit.LocalBranchName
		if facName == "" {
			facName = "Unknown"
		}
		snap.Facilities[name] = append(snap.Facilities[name], model.Facility{
			ID:        unit.ID,
			Name:      facName,
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return dropped
}

// validCoordinates checks a GeoJSON [lon, lat] pair. Anything malformed or
// out of range is excluded, never an error.
func validCoordinates(coords []float64) (lon, lat float64, ok bool) {
	if len(coords) != 2 {
		return 0, 0, false
	}
	lon, lat = coords[0], coords[1]
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lon, lat, true
}

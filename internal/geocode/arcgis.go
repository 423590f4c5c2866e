package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/pkg/core"
)

// SuggestCategories restricts suggestions to address-level matches.
const SuggestCategories = "Subaddress,Point Address,Street Address"

// Client talks to an ArcGIS World GeocodeServer.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
}

// NewClient creates a GeocodeServer client.
func NewClient(cfg config.GeocoderConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		token:       cfg.Token,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		backoff:     200 * time.Millisecond,
		log:         logger,
	}
}

type arcgisPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type candidatesResponse struct {
	Candidates []struct {
		Address    string         `json:"address"`
		Location   arcgisPoint    `json:"location"`
		Score      float64        `json:"score"`
		Attributes map[string]any `json:"attributes"`
	} `json:"candidates"`
	Error *ArcGISError `json:"error"`
}

type suggestResponse struct {
	Suggestions []core.Suggestion `json:"suggestions"`
	Error       *ArcGISError      `json:"error"`
}

type reverseResponse struct {
	Address struct {
		MatchAddr string `json:"Match_addr"`
		LongLabel string `json:"LongLabel"`
	} `json:"address"`
	Location arcgisPoint  `json:"location"`
	Error    *ArcGISError `json:"error"`
}

// Resolve returns the top candidate for address.
func (c *Client) Resolve(ctx context.Context, address string) (Candidate, error) {
	params := url.Values{}
	params.Set("SingleLine", address)
	params.Set("outFields", "*")
	params.Set("maxLocations", "1")
	params.Set("outSR", "4326")

	var decoded candidatesResponse
	if err := c.getJSON(ctx, "/findAddressCandidates", params, &decoded); err != nil {
		return Candidate{}, err
	}
	if decoded.Error != nil {
		return Candidate{}, decoded.Error
	}
	if len(decoded.Candidates) == 0 {
		return Candidate{}, fmt.Errorf("%w for %q", ErrNoResults, address)
	}

	top := decoded.Candidates[0]
	coords := core.Coordinates{Longitude: top.Location.X, Latitude: top.Location.Y}

	// DisplayX/DisplayY is the rooftop position; location may be a street entry point.
	if x, ok := number(top.Attributes["DisplayX"]); ok {
		if y, ok := number(top.Attributes["DisplayY"]); ok {
			coords = core.Coordinates{Longitude: x, Latitude: y}
		}
	}

	return Candidate{
		Address:     top.Address,
		Coordinates: coords,
		Score:       top.Score,
		Attributes:  top.Attributes,
	}, nil
}

// Geocode implements marker.Geocoder.
func (c *Client) Geocode(ctx context.Context, address string) (core.Coordinates, error) {
	return coordinatesOf(c.Resolve(ctx, address))
}

// Suggest returns up to limit typeahead candidates, biased toward near when set.
func (c *Client) Suggest(ctx context.Context, text string, near *core.Coordinates, distance float64, limit int) ([]core.Suggestion, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("category", SuggestCategories)
	if limit > 0 {
		params.Set("maxSuggestions", strconv.Itoa(limit))
	}
	if near != nil {
		params.Set("location", formatPoint(*near))
		if distance > 0 {
			params.Set("distance", strconv.FormatFloat(distance, 'f', -1, 64))
		}
	}

	var decoded suggestResponse
	if err := c.getJSON(ctx, "/suggest", params, &decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	if decoded.Suggestions == nil {
		return []core.Suggestion{}, nil
	}
	return decoded.Suggestions, nil
}

// Reverse returns the address nearest pt within distance metres.
func (c *Client) Reverse(ctx context.Context, pt core.Coordinates, distance float64) (core.Location, error) {
	params := url.Values{}
	params.Set("location", formatPoint(pt))
	params.Set("outSR", "4326")
	if distance > 0 {
		params.Set("distance", strconv.FormatFloat(distance, 'f', -1, 64))
	}

	var decoded reverseResponse
	if err := c.getJSON(ctx, "/reverseGeocode", params, &decoded); err != nil {
		return core.Location{}, err
	}
	if decoded.Error != nil {
		// 400 with "Unable to find address" means nothing within distance.
		for _, d := range decoded.Error.Details {
			if strings.Contains(d, "Unable to find address") {
				return core.Location{}, fmt.Errorf("%w near %s", ErrNoResults, formatPoint(pt))
			}
		}
		return core.Location{}, decoded.Error
	}

	return core.Location{
		Address: decoded.Address.MatchAddr,
		Label:   decoded.Address.LongLabel,
		Coordinates: core.Coordinates{
			Longitude: decoded.Location.X,
			Latitude:  decoded.Location.Y,
		},
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("f", "json")
	if c.token != "" {
		params.Set("token", c.token)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("geocoder %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func formatPoint(c core.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

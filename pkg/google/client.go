package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// MaxPageSize is the largest page Text Search returns.
const MaxPageSize = 20

// Field masks. Places bills by the most expensive field requested, so the
// URL-only mask deliberately omits rating and review count.
var (
	// FieldMaskLookup resolves one business with review data.
	FieldMaskLookup = []string{
		"places.id",
		"places.displayName",
		"places.formattedAddress",
		"places.rating",
		"places.userRatingCount",
		"places.googleMapsUri",
	}

	// FieldMaskURLOnly resolves only the Maps URL.
	FieldMaskURLOnly = []string{
		"places.id",
		"places.googleMapsUri",
	}

	// FieldMaskSearch returns everything a search result row carries.
	FieldMaskSearch = []string{
		"places.id",
		"places.displayName",
		"places.formattedAddress",
		"places.nationalPhoneNumber",
		"places.websiteUri",
		"places.rating",
		"places.userRatingCount",
		"places.googleMapsUri",
		"nextPageToken",
	}
)

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body of a places:searchText call. FieldMask is
// sent as the X-Goog-FieldMask header.
type TextSearchRequest struct {
	TextQuery    string        `json:"textQuery"`
	PageSize     int           `json:"pageSize,omitempty"`
	PageToken    string        `json:"pageToken,omitempty"`
	LocationBias *LocationBias `json:"locationBias,omitempty"`
	RegionCode   string        `json:"regionCode,omitempty"`
	FieldMask    []string      `json:"-"`
}

// LocationBias prefers results inside a circle.
type LocationBias struct {
	Circle Circle `json:"circle"`
}

// Circle is a center point and a radius in meters.
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a place returned by the API. Rating and UserRatingCount
// are nil when the field was not requested or the place has no reviews.
type Place struct {
	ID                  string      `json:"id"`
	DisplayName         DisplayName `json:"displayName"`
	FormattedAddress    string      `json:"formattedAddress,omitempty"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber,omitempty"`
	WebsiteURI          string      `json:"websiteUri,omitempty"`
	Rating              *float64    `json:"rating,omitempty"`
	UserRatingCount     *int        `json:"userRatingCount,omitempty"`
	GoogleMapsURI       string      `json:"googleMapsUri,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TextSearch calls places:searchText. Failed responses come back as
// *resilience.TransientError (429, 5xx, transport failures) or
// *resilience.StatusError (everything else, e.g. a rejected key).
func (c *httpClient) TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error) {
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	mask := req.FieldMask
	if len(mask) == 0 {
		mask = FieldMaskLookup
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", strings.Join(mask, ","))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil && resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "google: send request"), 0)
		}
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "google: read response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.HTTPStatusError("google", resp.StatusCode, string(respBody))
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}

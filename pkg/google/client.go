package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// MaxPageSize is the largest page the Text Search endpoint returns.
const MaxPageSize = 20

// BusinessStatusClosedPermanently marks places that no longer trade.
const BusinessStatusClosedPermanently = "CLOSED_PERMANENTLY"

// placeFields are requested on both search and details calls.
var placeFields = []string{
	"id",
	"displayName",
	"formattedAddress",
	"location",
	"types",
	"rating",
	"userRatingCount",
	"websiteUri",
	"nationalPhoneNumber",
	"internationalPhoneNumber",
	"googleMapsUri",
	"businessStatus",
}

// Client performs Google Places API operations.
type Client interface {
	SearchText(ctx context.Context, req SearchTextRequest) (*SearchTextResponse, error)
	GetPlace(ctx context.Context, id string) (*Place, error)
}

// SearchTextRequest is a Places Text Search query. PageToken continues a
// previous search.
type SearchTextRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
	Language  string `json:"languageCode,omitempty"`
	Region    string `json:"regionCode,omitempty"`
}

// SearchTextResponse is one page of Text Search results.
type SearchTextResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a place returned by the API.
type Place struct {
	ID                       string      `json:"id"`
	DisplayName              DisplayName `json:"displayName"`
	FormattedAddress         string      `json:"formattedAddress"`
	Location                 *LatLng     `json:"location,omitempty"`
	Types                    []string    `json:"types"`
	Rating                   *float64    `json:"rating,omitempty"`
	UserRatingCount          *int        `json:"userRatingCount,omitempty"`
	WebsiteURI               string      `json:"websiteUri,omitempty"`
	NationalPhoneNumber      string      `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string      `json:"internationalPhoneNumber,omitempty"`
	GoogleMapsURI            string      `json:"googleMapsUri,omitempty"`
	BusinessStatus           string      `json:"businessStatus,omitempty"`
}

// Phone returns the national number, falling back to the international one.
func (p Place) Phone() string {
	if p.NationalPhoneNumber != "" {
		return p.NationalPhoneNumber
	}
	return p.InternationalPhoneNumber
}

// Closed reports whether the place has permanently closed.
func (p Place) Closed() bool {
	return p.BusinessStatus == BusinessStatusClosedPermanently
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL. An empty url keeps the
// default.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLocale sets the default language and region codes sent with every
// search, e.g. "fr" and "FR".
func WithLocale(language, region string) Option {
	return func(c *httpClient) {
		c.language = language
		c.region = region
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	language string
	region   string
	http     *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		language: "fr",
		region:   "FR",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchText(ctx context.Context, in SearchTextRequest) (*SearchTextResponse, error) {
	if strings.TrimSpace(in.TextQuery) == "" {
		return nil, eris.New("google: empty text query")
	}
	if in.PageSize <= 0 || in.PageSize > MaxPageSize {
		in.PageSize = MaxPageSize
	}
	if in.Language == "" {
		in.Language = c.language
	}
	if in.Region == "" {
		in.Region = c.region
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", searchFieldMask())

	var result SearchTextResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) GetPlace(ctx context.Context, id string) (*Place, error) {
	if id == "" {
		return nil, eris.New("google: empty place id")
	}

	endpoint := c.baseURL + "/places/" + url.PathEscape(id)
	if c.language != "" {
		endpoint += "?languageCode=" + url.QueryEscape(c.language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("X-Goog-FieldMask", strings.Join(placeFields, ","))

	var place Place
	if err := c.do(req, &place); err != nil {
		return nil, err
	}
	return &place, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("google", resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "google: unmarshal response")
	}
	return nil
}

func searchFieldMask() string {
	masked := make([]string, 0, len(placeFields)+1)
	for _, f := range placeFields {
		masked = append(masked, "places."+f)
	}
	return strings.Join(append(masked, "nextPageToken"), ",")
}

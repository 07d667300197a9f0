// Package sirene is a client for the INSEE Sirene establishment registry.
package sirene

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/resilience"
)

const defaultBaseURL = "https://api.insee.fr/entreprises/sirene/V3.11"

// DefaultCount is the page size used when SearchParams.Count is unset.
const DefaultCount = 100

// ErrUnauthorized is returned when the API key is rejected.
var ErrUnauthorized = eris.New("sirene: invalid or expired api key")

var activityCodeRe = regexp.MustCompile(`^\d{2}\.\d{2}[A-Z]?$`)

// Client searches the establishment registry.
type Client interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	GetBySIRET(ctx context.Context, siret string) (*Etablissement, error)
}

// SearchParams filters a registry search. Only active establishments are
// returned.
type SearchParams struct {
	PostalCode string
	City       string
	// Activity is a NAF code such as "56.10A" or a keyword matched against
	// the legal name.
	Activity string
	Count    int
	Start    int
}

// SearchResult is one page of establishments.
type SearchResult struct {
	Total          int
	Etablissements []Etablissement
}

// Etablissement is a registered establishment.
type Etablissement struct {
	Siren       string      `json:"siren"`
	Siret       string      `json:"siret"`
	UniteLegale UniteLegale `json:"uniteLegale"`
	Adresse     Adresse     `json:"adresseEtablissement"`
	Periodes    []Periode   `json:"periodesEtablissement"`
	Effectifs   *string     `json:"trancheEffectifsEtablissement"`
}

// UniteLegale is the legal unit an establishment belongs to.
type UniteLegale struct {
	Denomination string  `json:"denominationUniteLegale"`
	Nom          *string `json:"nomUniteLegale"`
	Prenom       *string `json:"prenom1UniteLegale"`
}

// Adresse is the establishment's postal address.
type Adresse struct {
	NumeroVoie  *string `json:"numeroVoieEtablissement"`
	TypeVoie    *string `json:"typeVoieEtablissement"`
	LibelleVoie *string `json:"libelleVoieEtablissement"`
	CodePostal  string  `json:"codePostalEtablissement"`
	Commune     string  `json:"libelleCommuneEtablissement"`
	CodeCommune string  `json:"codeCommuneEtablissement"`
}

// Periode is one historical period of an establishment. The current period
// has no end date and comes first.
type Periode struct {
	DateFin             *string `json:"dateFin"`
	EtatAdministratif   string  `json:"etatAdministratifEtablissement"`
	Enseigne            *string `json:"enseigne1Etablissement"`
	DenominationUsuelle *string `json:"denominationUsuelleEtablissement"`
	ActivitePrincipale  string  `json:"activitePrincipaleEtablissement"`
}

// Current returns the open period, or the most recent one.
func (e Etablissement) Current() Periode {
	for _, p := range e.Periodes {
		if p.DateFin == nil {
			return p
		}
	}
	if len(e.Periodes) > 0 {
		return e.Periodes[0]
	}
	return Periode{}
}

// Active reports whether the latest period is administratively active.
func (e Etablissement) Active() bool {
	return e.Current().EtatAdministratif == "A"
}

// LegalName returns the legal unit's name, building it from the person's
// name for sole traders.
func (e Etablissement) LegalName() string {
	if d := strings.TrimSpace(e.UniteLegale.Denomination); d != "" {
		return d
	}
	var parts []string
	for _, p := range []*string{e.UniteLegale.Prenom, e.UniteLegale.Nom} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Sirene API client authenticated with a bearer key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BuildQuery returns the multi-criteria query for params.
func BuildQuery(params SearchParams) string {
	criteria := []string{"periode(etatAdministratifEtablissement:A)"}
	if params.PostalCode != "" {
		criteria = append(criteria, "codePostalEtablissement:"+params.PostalCode)
	}
	if params.City != "" {
		criteria = append(criteria, `libelleCommuneEtablissement:"`+strings.ToUpper(params.City)+`"`)
	}
	if a := strings.TrimSpace(params.Activity); a != "" {
		if activityCodeRe.MatchString(a) {
			criteria = append(criteria, "activitePrincipaleEtablissement:"+strings.Replace(a, ".", "", 1))
		} else {
			criteria = append(criteria, `denominationUniteLegale:"*`+strings.ToUpper(a)+`*"`)
		}
	}
	return strings.Join(criteria, " AND ")
}

type searchResponse struct {
	Header struct {
		Total  int `json:"total"`
		Debut  int `json:"debut"`
		Nombre int `json:"nombre"`
	} `json:"header"`
	Etablissements []Etablissement `json:"etablissements"`
}

func (c *httpClient) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.PostalCode == "" && params.City == "" {
		return nil, eris.New("sirene: postal code or city required")
	}
	count := params.Count
	if count <= 0 {
		count = DefaultCount
	}

	q := url.Values{}
	q.Set("q", BuildQuery(params))
	q.Set("nombre", strconv.Itoa(count))
	q.Set("debut", strconv.Itoa(max(params.Start, 0)))

	var resp searchResponse
	found, err := c.get(ctx, c.baseURL+"/siret?"+q.Encode(), &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return &SearchResult{}, nil
	}
	return &SearchResult{Total: resp.Header.Total, Etablissements: resp.Etablissements}, nil
}

func (c *httpClient) GetBySIRET(ctx context.Context, siret string) (*Etablissement, error) {
	if siret == "" {
		return nil, eris.New("sirene: empty siret")
	}
	var resp struct {
		Etablissement Etablissement `json:"etablissement"`
	}
	found, err := c.get(ctx, c.baseURL+"/siret/"+url.PathEscape(siret), &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &resp.Etablissement, nil
}

// get decodes a JSON GET into out. A 404 reports found=false.
func (c *httpClient) get(ctx context.Context, endpoint string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, eris.Wrap(err, "sirene: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "sirene: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, eris.Wrap(err, "sirene: read response")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	case http.StatusUnauthorized:
		return false, ErrUnauthorized
	default:
		return false, resilience.StatusError("sirene", resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, eris.Wrap(err, "sirene: unmarshal response")
	}
	return true, nil
}

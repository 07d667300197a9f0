package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadhunter/internal/resilience"
)

func TestSearchText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.websiteUri")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "nextPageToken")

		var body SearchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "boulangerie Nantes", body.TextQuery)
		assert.Equal(t, MaxPageSize, body.PageSize)
		assert.Equal(t, "fr", body.Language)
		assert.Equal(t, "FR", body.Region)

		rating := 4.6
		count := 212
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchTextResponse{
			Places: []Place{
				{
					ID:                  "ChIJ-1",
					DisplayName:         DisplayName{Text: "Boulangerie Dupont"},
					FormattedAddress:    "12 Rue Crébillon, 44000 Nantes, France",
					Location:            &LatLng{Latitude: 47.2137, Longitude: -1.5603},
					Types:               []string{"bakery", "food"},
					Rating:              &rating,
					UserRatingCount:     &count,
					NationalPhoneNumber: "02 40 00 00 00",
				},
			},
			NextPageToken: "page-2",
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "boulangerie Nantes"})

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	p := resp.Places[0]
	assert.Equal(t, "ChIJ-1", p.ID)
	assert.Equal(t, "Boulangerie Dupont", p.DisplayName.Text)
	assert.InDelta(t, 4.6, *p.Rating, 0.001)
	assert.Equal(t, 212, *p.UserRatingCount)
	assert.Empty(t, p.WebsiteURI)
	assert.Equal(t, "02 40 00 00 00", p.Phone())
	assert.False(t, p.Closed())
	assert.Equal(t, "page-2", resp.NextPageToken)
}

func TestSearchText_PageToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body SearchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		if body.PageToken == "" {
			_ = json.NewEncoder(w).Encode(SearchTextResponse{
				Places:        []Place{{ID: "p1"}},
				NextPageToken: "tok",
			})
			return
		}
		assert.Equal(t, "tok", body.PageToken)
		_ = json.NewEncoder(w).Encode(SearchTextResponse{Places: []Place{{ID: "p2"}}})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	first, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "garage"})
	require.NoError(t, err)
	second, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "garage", PageToken: first.NextPageToken})
	require.NoError(t, err)

	assert.Equal(t, "p2", second.Places[0].ID)
	assert.Empty(t, second.NextPageToken)
	assert.Equal(t, 2, calls)
}

func TestSearchText_EmptyQuery(t *testing.T) {
	client := NewClient("test-key", WithBaseURL("http://unused.invalid"))
	_, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "  "})
	assert.Error(t, err)
}

func TestSearchText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "x"})

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, resilience.IsTransient(err))
}

func TestSearchText_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.True(t, resilience.IsTransient(err))
}

func TestSearchText_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(ctx, SearchTextRequest{TextQuery: "x"})

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestGetPlace_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/places/ChIJ-9", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("languageCode"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "websiteUri")
		assert.NotContains(t, r.Header.Get("X-Goog-FieldMask"), "places.")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Place{
			ID:                       "ChIJ-9",
			DisplayName:              DisplayName{Text: "Garage Martin"},
			WebsiteURI:               "http://garage-martin.fr",
			InternationalPhoneNumber: "+33 2 40 00 00 00",
			GoogleMapsURI:            "https://maps.google.com/?cid=9",
			BusinessStatus:           BusinessStatusClosedPermanently,
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithLocale("en", "GB"))
	p, err := client.GetPlace(context.Background(), "ChIJ-9")

	require.NoError(t, err)
	assert.Equal(t, "http://garage-martin.fr", p.WebsiteURI)
	assert.Equal(t, "+33 2 40 00 00 00", p.Phone())
	assert.True(t, p.Closed())
}

func TestGetPlace_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.GetPlace(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = client.GetPlace(context.Background(), "")
	assert.Error(t, err)
}

func TestSearchFieldMask(t *testing.T) {
	mask := searchFieldMask()
	assert.Contains(t, mask, "places.id,")
	assert.Contains(t, mask, "places.businessStatus")
	assert.NotContains(t, mask, "places.nextPageToken")
}

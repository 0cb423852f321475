package collab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL + "/"}, discardLogger())
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{}, discardLogger())
	assert.Error(t, err)
}

func TestHTTPClient_Submissions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/submissions", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("formId"))
		_, _ = io.WriteString(w, `{"submissions":[{"id":7,"formId":1,"data":{"1":"Lions","29_markup":"20"}},{"id":"abc","data":{}}]}`)
	})

	records, err := c.Submissions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "7", records[0].ID)
	assert.Equal(t, "Lions", records[0].String("1"))
	markup, ok := records[0].Number("29_markup")
	assert.True(t, ok)
	assert.Equal(t, 20.0, markup)
	assert.Equal(t, "abc", records[1].ID)
}

func TestHTTPClient_KitPricing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"success":true,"basePrice":165,"includedItems":["Jersey"]}`)
		case http.MethodPut:
			var body domain.KitPricingConfig
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 180.0, body.BasePrice)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "basePrice": body.BasePrice})
		}
	})

	cfg, err := c.KitPricing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 165.0, cfg.BasePrice)
	assert.Equal(t, []string{"Jersey"}, cfg.IncludedItems)

	cfg, err = c.UpdateKitPricing(context.Background(), domain.KitPricingConfig{BasePrice: 180})
	require.NoError(t, err)
	assert.Equal(t, 180.0, cfg.BasePrice)
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, body: `{}`, wantErr: ErrNotFound},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantErr: ErrUnavailable},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"Invalid baseFee"}`, wantErr: ErrRejected},
		{name: "success false", status: http.StatusOK, body: `{"success":false,"error":"nope"}`, wantErr: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.EntryFeeSettings(context.Background())
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestHTTPClient_LandingPageDisabled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"landingPage":{"formId":1,"enabled":false}}`)
	})

	_, err := c.LandingPage(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_CreateSubmission(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			FormID int            `json:"formId"`
			Data   map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1, body.FormID)
		assert.Equal(t, "Lions", body.Data["1"])
		_, _ = io.WriteString(w, `{"success":true,"submission":{"id":42,"data":{"1":"Lions"}},"teamProfile":{"teamName":"Lions","email":"l@example.com","password":"abc123"}}`)
	})

	res, err := c.CreateSubmission(context.Background(), 1, map[string]any{"1": "Lions"})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Submission.ID)
	require.NotNil(t, res.TeamProfile)
	assert.Equal(t, "abc123", res.TeamProfile.Password)
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ShirtDesigns(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBackend_CreateSubmission(t *testing.T) {
	m := NewMemoryBackend(discardLogger()).WithBcryptCost(bcrypt.MinCost)
	ctx := context.Background()

	res, err := m.CreateSubmission(ctx, 1, map[string]any{"1": "Lions", "3": "Lions@Example.com"})
	require.NoError(t, err)
	require.NotNil(t, res.TeamProfile)
	assert.Equal(t, "Lions", res.TeamProfile.TeamName)
	assert.Len(t, res.TeamProfile.Password, TempPasswordBytes*2)
	assert.True(t, m.VerifyTeamPassword("lions@example.com", res.TeamProfile.Password))
	assert.False(t, m.VerifyTeamPassword("lions@example.com", "wrong"))

	records, err := m.Submissions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, res.Submission.ID, records[0].ID)
	assert.NotContains(t, records[0].Data, "password", "plaintext credentials are never stored")

	res, err = m.CreateSubmission(ctx, 2, map[string]any{"37": "Jane"})
	require.NoError(t, err)
	assert.Nil(t, res.TeamProfile, "only team registrations return credentials")

	_, err = m.CreateSubmission(ctx, 2, nil)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestMemoryBackend_Settings(t *testing.T) {
	m := NewMemoryBackend(discardLogger())
	ctx := context.Background()

	kit, err := m.KitPricing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150.0, kit.BasePrice)

	kit, err = m.UpdateKitPricing(ctx, domain.KitPricingConfig{BasePrice: 160, IncludedItems: []string{" Jersey ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jersey"}, kit.IncludedItems)

	_, err = m.UpdateEntryFeeSettings(ctx, domain.EntryFeeConfig{BaseFee: -1})
	assert.ErrorIs(t, err, ErrRejected)

	fee, err := m.EntryFeeSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500.0, fee.BaseFee)
}

func TestMemoryBackend_LandingPage(t *testing.T) {
	m := NewMemoryBackend(discardLogger())
	ctx := context.Background()

	p, err := m.LandingPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Register Your Team", p.Hero.Title)

	_, err = m.LandingPage(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	m.SetLandingPage(1, nil)
	_, err = m.LandingPage(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductFilter(t *testing.T) {
	m := NewMemoryBackend(discardLogger())
	m.AddProducts(
		Product{ID: "1", Name: "Bat", Category: "Upsell", Active: true},
		Product{ID: "2", Name: "Ball", Category: "upsell", Active: false},
		Product{ID: "3", Name: "Gloves", Category: "Equipment", Active: true},
	)

	got, err := m.Products(context.Background(), ProductFilter{Category: "upsell", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ID("1"), got[0].ID)

	item := got[0].CartItem()
	assert.Equal(t, "1", item.ID)
	assert.Equal(t, "Bat", item.Name)
}

package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

const (
	// DefaultTimeout bounds every collaborator request.
	DefaultTimeout = 15 * time.Second

	// MaxResponseSize caps collaborator response bodies (submission lists
	// can carry inline images).
	MaxResponseSize = 32 << 20
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient implements Client as JSON over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the collaborator API at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("collaborator base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid collaborator base URL: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

// envelope is the status part every collaborator response shares.
type envelope struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e envelope) check() error {
	if e.Success != nil && !*e.Success {
		if e.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, e.Error)
		}
		return ErrRejected
	}
	return nil
}

type checker interface{ check() error }

// do executes one request and decodes the JSON response into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, out checker) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if err := mapStatus(resp.StatusCode, raw); err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return out.check()
}

// mapStatus maps HTTP status codes to collaborator errors.
func mapStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	if env.Error != "" {
		return fmt.Errorf("%w: %s", ErrRejected, env.Error)
	}
	return fmt.Errorf("%w: status %d", ErrRejected, status)
}

// =============================================================================
// Reads
// =============================================================================

func (c *HTTPClient) LandingPage(ctx context.Context, formID int) (*LandingPage, error) {
	var resp struct {
		envelope
		LandingPage *LandingPage `json:"landingPage"`
	}
	q := url.Values{"formId": {strconv.Itoa(formID)}}
	if err := c.do(ctx, http.MethodGet, "/api/landing-pages", q, nil, &resp); err != nil {
		return nil, WrapError("landing page", err)
	}
	if resp.LandingPage == nil || !resp.LandingPage.Enabled {
		return nil, WrapError("landing page", ErrNotFound)
	}
	return resp.LandingPage, nil
}

func (c *HTTPClient) Products(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var resp struct {
		envelope
		Products []Product `json:"products"`
	}
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.ActiveOnly {
		q.Set("activeOnly", "true")
	}
	if err := c.do(ctx, http.MethodGet, "/api/products", q, nil, &resp); err != nil {
		return nil, WrapError("products", err)
	}
	return resp.Products, nil
}

func (c *HTTPClient) Submissions(ctx context.Context, formID int) ([]domain.SubmissionRecord, error) {
	var resp struct {
		envelope
		Submissions []domain.SubmissionRecord `json:"submissions"`
	}
	q := url.Values{"formId": {strconv.Itoa(formID)}}
	if err := c.do(ctx, http.MethodGet, "/api/submissions", q, nil, &resp); err != nil {
		return nil, WrapError("submissions", err)
	}
	return resp.Submissions, nil
}

type kitPricingResponse struct {
	envelope
	domain.KitPricingConfig
}

func (c *HTTPClient) KitPricing(ctx context.Context) (domain.KitPricingConfig, error) {
	var resp kitPricingResponse
	if err := c.do(ctx, http.MethodGet, "/api/kit-pricing", nil, nil, &resp); err != nil {
		return domain.KitPricingConfig{}, WrapError("kit pricing", err)
	}
	return resp.KitPricingConfig, nil
}

func (c *HTTPClient) UpdateKitPricing(ctx context.Context, cfg domain.KitPricingConfig) (domain.KitPricingConfig, error) {
	var resp kitPricingResponse
	if err := c.do(ctx, http.MethodPut, "/api/kit-pricing", nil, cfg, &resp); err != nil {
		return domain.KitPricingConfig{}, WrapError("update kit pricing", err)
	}
	return resp.KitPricingConfig, nil
}

type entryFeeResponse struct {
	envelope
	domain.EntryFeeConfig
}

func (c *HTTPClient) EntryFeeSettings(ctx context.Context) (domain.EntryFeeConfig, error) {
	var resp entryFeeResponse
	if err := c.do(ctx, http.MethodGet, "/api/entry-fee-settings", nil, nil, &resp); err != nil {
		return domain.EntryFeeConfig{}, WrapError("entry fee settings", err)
	}
	return resp.EntryFeeConfig, nil
}

func (c *HTTPClient) UpdateEntryFeeSettings(ctx context.Context, cfg domain.EntryFeeConfig) (domain.EntryFeeConfig, error) {
	var resp entryFeeResponse
	if err := c.do(ctx, http.MethodPut, "/api/entry-fee-settings", nil, cfg, &resp); err != nil {
		return domain.EntryFeeConfig{}, WrapError("update entry fee settings", err)
	}
	return resp.EntryFeeConfig, nil
}

func (c *HTTPClient) KitSizeCharts(ctx context.Context) (SizeCharts, error) {
	var resp struct {
		envelope
		SizeCharts
	}
	if err := c.do(ctx, http.MethodGet, "/api/kit-size-charts", nil, nil, &resp); err != nil {
		return SizeCharts{}, WrapError("kit size charts", err)
	}
	return resp.SizeCharts, nil
}

func (c *HTTPClient) SupporterProducts(ctx context.Context) ([]Product, error) {
	var resp struct {
		envelope
		Products []Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/supporter-products", nil, nil, &resp); err != nil {
		return nil, WrapError("supporter products", err)
	}
	return resp.Products, nil
}

func (c *HTTPClient) ShirtDesigns(ctx context.Context, activeOnly bool) ([]ShirtDesign, error) {
	var resp struct {
		envelope
		Designs []ShirtDesign `json:"designs"`
	}
	q := url.Values{}
	if activeOnly {
		q.Set("activeOnly", "true")
	}
	if err := c.do(ctx, http.MethodGet, "/api/shirt-designs", q, nil, &resp); err != nil {
		return nil, WrapError("shirt designs", err)
	}
	return resp.Designs, nil
}

func (c *HTTPClient) TeamRegistrationBanner(ctx context.Context) (*Banner, error) {
	var resp struct {
		envelope
		Banner *Banner `json:"banner"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/team-registration-banner", nil, nil, &resp); err != nil {
		return nil, WrapError("team registration banner", err)
	}
	if resp.Banner == nil {
		return DefaultBanner(), nil
	}
	return resp.Banner, nil
}

// =============================================================================
// Writes
// =============================================================================

func (c *HTTPClient) CreateSubmission(ctx context.Context, formID int, data map[string]any) (*domain.SubmissionResult, error) {
	var resp struct {
		envelope
		domain.SubmissionResult
	}
	body := map[string]any{"formId": formID, "data": data}

	start := time.Now()
	if err := c.do(ctx, http.MethodPost, "/api/submissions", nil, body, &resp); err != nil {
		return nil, WrapError("create submission", err)
	}
	c.logger.Info("submission created",
		"form_id", formID,
		"submission_id", resp.Submission.ID,
		"duration", time.Since(start),
	)
	return &resp.SubmissionResult, nil
}

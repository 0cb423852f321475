// Package service contains the session layer between HTTP handlers and the
// form engine.
//
// Each client (one browser, identified by its client cookie) gets a storage
// namespace holding its cart and drafts, and one engine per open form.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/DukeRupert/leaguekit/internal/cart"
	"github.com/DukeRupert/leaguekit/internal/collab"
	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/draft"
	"github.com/DukeRupert/leaguekit/internal/engine"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/media"
	"github.com/DukeRupert/leaguekit/internal/metrics"
	"github.com/DukeRupert/leaguekit/internal/pricing"
	"github.com/DukeRupert/leaguekit/internal/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// RegistrationService defines the operations behind the registration API.
type RegistrationService interface {
	// ListForms returns every template, or only those in categoryID when it
	// is positive.
	ListForms(categoryID int) []*domain.FormTemplate

	// GetForm returns a template. Returns domain.ENOTFOUND if unknown.
	GetForm(formID int) (*domain.FormTemplate, error)

	// PageFields returns the ordered fields of one page.
	// Returns domain.ENOTFOUND for an unknown form or page.
	PageFields(formID, pageID int) ([]domain.Field, error)

	// Open returns the client's engine for a form, creating it, restoring
	// its draft and waiting for the collaborator fetches on first use.
	Open(ctx context.Context, clientID string, formID int) (*engine.Engine, error)

	// Apply, Next, Prev, Submit and Reset run one engine action and
	// return its outcome with the resulting view.
	Apply(ctx context.Context, clientID string, formID int, m engine.Mutation) (*Result, error)
	Next(ctx context.Context, clientID string, formID int) (*Result, error)
	Prev(ctx context.Context, clientID string, formID int) (*Result, error)
	Submit(ctx context.Context, clientID string, formID int) (*Result, error)
	Reset(ctx context.Context, clientID string, formID int) (*Result, error)

	// Discard drops the client's engine for a form. The draft is kept.
	Discard(clientID string, formID int)

	// Cart returns the client's hydrated cart.
	Cart(ctx context.Context, clientID string) *cart.Store

	// KitPricing and EntryFee read and update the league-wide price
	// settings through the collaborator.
	KitPricing(ctx context.Context) (domain.KitPricingConfig, error)
	UpdateKitPricing(ctx context.Context, cfg domain.KitPricingConfig) (domain.KitPricingConfig, error)
	EntryFee(ctx context.Context) (domain.EntryFeeConfig, error)
	UpdateEntryFee(ctx context.Context, cfg domain.EntryFeeConfig) (domain.EntryFeeConfig, error)

	// Sweep drops clients idle for longer than idle and returns how many
	// were dropped.
	Sweep(idle time.Duration) int
}

// Result is an engine outcome together with the state it produced.
type Result struct {
	Outcome engine.Outcome `json:"outcome"`
	View    engine.View    `json:"view"`
}

// Config tunes the registration service.
type Config struct {
	// LoadTimeout bounds the collaborator fetches started when a session
	// opens. Zero means 10 seconds.
	LoadTimeout time.Duration

	Pricing pricing.Defaults
	Media   media.Recompressor
}

// =============================================================================
// Implementation
// =============================================================================

type clientState struct {
	cart     *cart.Store
	drafts   *draft.Store
	sessions map[int]*session
	lastSeen time.Time
}

type session struct {
	engine *engine.Engine
	// loaded is closed once Load has started every fetch.
	loaded chan struct{}
}

type registrationService struct {
	forms   *forms.Repository
	collab  collab.Client
	storage storage.Storage
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*clientState
}

// NewRegistrationService creates a new RegistrationService.
//
// Parameters:
// - repo: Template repository
// - client: Collaborator backend for fetches and submissions
// - st: Durable storage; each client gets a scoped view of it
// - cfg: Timeouts, pricing defaults and image recompression
// - logger: Structured logger for operation logging
func NewRegistrationService(
	repo *forms.Repository,
	client collab.Client,
	st storage.Storage,
	cfg Config,
	logger *slog.Logger,
) RegistrationService {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	return &registrationService{
		forms:   repo,
		collab:  client,
		storage: st,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		clients: make(map[string]*clientState),
	}
}

// =============================================================================
// Templates
// =============================================================================

func (s *registrationService) ListForms(categoryID int) []*domain.FormTemplate {
	if categoryID > 0 {
		return s.forms.ByCategory(categoryID)
	}
	return s.forms.List()
}

func (s *registrationService) GetForm(formID int) (*domain.FormTemplate, error) {
	return s.forms.Get(formID)
}

func (s *registrationService) PageFields(formID, pageID int) ([]domain.Field, error) {
	const op = "registration.page_fields"

	t, err := s.forms.Get(formID)
	if err != nil {
		return nil, err
	}
	for _, id := range forms.PageIDs(t) {
		if id == pageID {
			return forms.FieldsForPage(t, pageID), nil
		}
	}
	return nil, domain.NotFound(op, "page", strconv.Itoa(pageID))
}

// =============================================================================
// Sessions
// =============================================================================

// client returns the state for clientID, creating it with a hydrated cart.
// The caller must hold s.mu.
func (s *registrationService) client(ctx context.Context, clientID string) *clientState {
	c, ok := s.clients[clientID]
	if !ok {
		scoped := storage.NewScoped(s.storage, clientID)
		logger := s.logger.With("client_id", clientID)
		c = &clientState{
			cart:     cart.New(scoped, logger),
			drafts:   draft.New(scoped, logger),
			sessions: make(map[int]*session),
		}
		c.cart.Hydrate(ctx)
		s.clients[clientID] = c
	}
	c.lastSeen = s.now()
	return c
}

func (s *registrationService) Open(ctx context.Context, clientID string, formID int) (*engine.Engine, error) {
	const op = "registration.open"

	if clientID == "" {
		return nil, domain.Invalid(op, "a client id is required")
	}

	s.mu.Lock()
	c := s.client(ctx, clientID)
	sess, ok := c.sessions[formID]
	if ok {
		s.mu.Unlock()
		<-sess.loaded
		if err := sess.engine.Wait(ctx); err != nil {
			s.logger.Debug("session still loading", "op", op, "form_id", formID, "error", err)
		}
		return sess.engine, nil
	}

	tmpl, err := s.forms.Get(formID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	e := engine.New(tmpl, engine.Deps{
		Templates: s.forms,
		Collab:    s.collab,
		Cart:      c.cart,
		Drafts:    c.drafts,
		Media:     s.cfg.Media,
		Pricing:   s.cfg.Pricing,
		Logger:    s.logger.With("client_id", clientID),
	})
	sess = &session{engine: e, loaded: make(chan struct{})}
	c.sessions[formID] = sess
	s.mu.Unlock()

	// Fetches outlive the request that opened the session.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoadTimeout)
	start := s.now()
	restored := e.Load(loadCtx)
	close(sess.loaded)
	metrics.SessionOpened(formID, restored)
	go func() {
		defer cancel()
		_ = e.Wait(loadCtx)
		metrics.SessionLoaded(formID, time.Since(start))
	}()

	if err := e.Wait(ctx); err != nil {
		s.logger.Debug("returning session before fetches finished", "op", op, "form_id", formID, "error", err)
	}

	s.logger.Info("form session opened",
		"client_id", clientID,
		"form_id", formID,
		"restored_draft", restored,
		"page", e.Page(),
	)
	return e, nil
}

// session returns an open engine without creating one.
func (s *registrationService) session(clientID string, formID int) (*engine.Engine, error) {
	const op = "registration.session"

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, domain.NotFound(op, "session", strconv.Itoa(formID))
	}
	sess, ok := c.sessions[formID]
	if !ok {
		return nil, domain.NotFound(op, "session", strconv.Itoa(formID))
	}
	c.lastSeen = s.now()
	return sess.engine, nil
}

// run executes one action against an open session, opening it first if the
// client has none, and records the action metric.
func (s *registrationService) run(ctx context.Context, action, clientID string, formID int, fn func(*engine.Engine) (engine.Outcome, error)) (*Result, error) {
	e, err := s.session(clientID, formID)
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		e, err = s.Open(ctx, clientID, formID)
	}
	if err != nil {
		return nil, err
	}

	out, err := fn(e)
	metrics.ActionRecorded(action, out.Alert, err)
	if err != nil && domain.ErrorCode(err) != domain.EUNAVAILABLE {
		return nil, err
	}
	return &Result{Outcome: out, View: e.View()}, err
}

func (s *registrationService) Apply(ctx context.Context, clientID string, formID int, m engine.Mutation) (*Result, error) {
	return s.run(ctx, m.Op, clientID, formID, func(e *engine.Engine) (engine.Outcome, error) {
		return e.Apply(ctx, m)
	})
}

func (s *registrationService) Next(ctx context.Context, clientID string, formID int) (*Result, error) {
	return s.run(ctx, "next", clientID, formID, func(e *engine.Engine) (engine.Outcome, error) {
		start := s.now()
		out, err := e.NextPage(ctx)
		if out.Submitted || domain.ErrorCode(err) == domain.EUNAVAILABLE {
			metrics.SubmissionCompleted(formID, time.Since(start), err)
		}
		return out, err
	})
}

func (s *registrationService) Prev(ctx context.Context, clientID string, formID int) (*Result, error) {
	return s.run(ctx, "prev", clientID, formID, func(e *engine.Engine) (engine.Outcome, error) {
		return e.PrevPage(ctx)
	})
}

func (s *registrationService) Submit(ctx context.Context, clientID string, formID int) (*Result, error) {
	return s.run(ctx, "submit", clientID, formID, func(e *engine.Engine) (engine.Outcome, error) {
		start := s.now()
		out, err := e.Submit(ctx)
		if out.Submitted || domain.ErrorCode(err) == domain.EUNAVAILABLE {
			metrics.SubmissionCompleted(formID, time.Since(start), err)
		}
		if out.Submitted {
			s.logger.Info("registration submitted", "client_id", clientID, "form_id", formID)
		}
		return out, err
	})
}

func (s *registrationService) Reset(ctx context.Context, clientID string, formID int) (*Result, error) {
	return s.run(ctx, "reset", clientID, formID, func(e *engine.Engine) (engine.Outcome, error) {
		return e.Reset(ctx), nil
	})
}

func (s *registrationService) Discard(clientID string, formID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return
	}
	if sess, ok := c.sessions[formID]; ok {
		sess.engine.Close()
		delete(c.sessions, formID)
		metrics.SessionClosed()
	}
}

func (s *registrationService) Cart(ctx context.Context, clientID string) *cart.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client(ctx, clientID).cart
}

func (s *registrationService) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	dropped := 0
	for id, c := range s.clients {
		if c.lastSeen.After(cutoff) {
			continue
		}
		for _, sess := range c.sessions {
			sess.engine.Close()
			metrics.SessionClosed()
		}
		delete(s.clients, id)
		dropped++
	}
	if dropped > 0 {
		s.logger.Debug("swept idle clients", "count", dropped)
	}
	return dropped
}

// =============================================================================
// Price Settings
// =============================================================================

func (s *registrationService) KitPricing(ctx context.Context) (domain.KitPricingConfig, error) {
	const op = "registration.kit_pricing"
	cfg, err := s.collab.KitPricing(ctx)
	if err != nil {
		return domain.KitPricingConfig{}, domain.Unavailable(err, op, "Kit pricing is unavailable right now.")
	}
	return cfg, nil
}

func (s *registrationService) UpdateKitPricing(ctx context.Context, cfg domain.KitPricingConfig) (domain.KitPricingConfig, error) {
	const op = "registration.update_kit_pricing"
	if cfg.BasePrice < 0 {
		return domain.KitPricingConfig{}, domain.Invalid(op, "Base price cannot be negative.")
	}
	saved, err := s.collab.UpdateKitPricing(ctx, cfg)
	if err != nil {
		return domain.KitPricingConfig{}, domain.Unavailable(err, op, "Kit pricing could not be saved. Please try again.")
	}
	s.logger.Info("kit pricing updated", "base_price", saved.BasePrice)
	return saved, nil
}

func (s *registrationService) EntryFee(ctx context.Context) (domain.EntryFeeConfig, error) {
	const op = "registration.entry_fee"
	cfg, err := s.collab.EntryFeeSettings(ctx)
	if err != nil {
		return domain.EntryFeeConfig{}, domain.Unavailable(err, op, "Entry fee settings are unavailable right now.")
	}
	return cfg, nil
}

func (s *registrationService) UpdateEntryFee(ctx context.Context, cfg domain.EntryFeeConfig) (domain.EntryFeeConfig, error) {
	const op = "registration.update_entry_fee"
	if cfg.BaseFee < 0 {
		return domain.EntryFeeConfig{}, domain.Invalid(op, "Base fee cannot be negative.")
	}
	saved, err := s.collab.UpdateEntryFeeSettings(ctx, cfg)
	if err != nil {
		return domain.EntryFeeConfig{}, domain.Unavailable(err, op, "Entry fee settings could not be saved. Please try again.")
	}
	s.logger.Info("entry fee updated", "base_fee", saved.BaseFee)
	return saved, nil
}

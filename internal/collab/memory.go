package collab

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

const (
	// TeamRegistrationFormID is the form whose submissions create team
	// profiles.
	TeamRegistrationFormID = 1

	// BcryptCost is the cost factor for team password hashes.
	BcryptCost = 12

	// TempPasswordBytes is the entropy of generated team passwords.
	TempPasswordBytes = 6

	teamNameKey  = "1"
	teamEmailKey = "3"
)

// MemoryBackend is an in-process Client for development and tests. It
// keeps submissions in memory and stores only bcrypt hashes of the team
// passwords it hands out.
type MemoryBackend struct {
	mu sync.RWMutex

	landingPages      map[int]*LandingPage
	products          []Product
	supporterProducts []Product
	designs           []ShirtDesign
	kitPricing        domain.KitPricingConfig
	entryFee          domain.EntryFeeConfig
	sizeCharts        SizeCharts
	banner            *Banner
	submissions       map[int][]domain.SubmissionRecord
	teamPasswords     map[string][]byte

	bcryptCost int
	logger     *slog.Logger
}

var _ Client = (*MemoryBackend)(nil)

// NewMemoryBackend creates a backend seeded with league defaults.
func NewMemoryBackend(logger *slog.Logger) *MemoryBackend {
	return &MemoryBackend{
		landingPages: map[int]*LandingPage{
			1: DefaultLandingPage(1),
			2: DefaultLandingPage(2),
		},
		supporterProducts: []Product{
			{ID: "supporter-jersey", Name: "Supporter Jersey", Description: "Official team supporter jersey", Price: 350, SizeOptions: []string{"Small", "Medium", "Large", "X-Large", "2X-Large"}, Active: true},
			{ID: "supporter-cap", Name: "Supporter Cap", Description: "Adjustable team cap with embroidered logo", Price: 150, SizeOptions: []string{"One Size"}, Active: true},
			{ID: "supporter-scarf", Name: "Team Scarf", Description: "Knitted team scarf in team colors", Price: 200, Active: true},
			{ID: "supporter-hoodie", Name: "Supporter Hoodie", Description: "Premium cotton blend hoodie with team branding", Price: 500, SizeOptions: []string{"Small", "Medium", "Large", "X-Large", "2X-Large"}, Active: true},
		},
		designs: []ShirtDesign{
			{ID: "1", Name: "Classic Stripe", Active: true},
			{ID: "2", Name: "Hooped", Active: true},
			{ID: "3", Name: "Sash", Active: true},
		},
		kitPricing:    domain.KitPricingConfig{BasePrice: 150, IncludedItems: slices.Clone(domain.DefaultIncludedItems)},
		entryFee:      domain.EntryFeeConfig{BaseFee: 500, IncludedItems: slices.Clone(domain.DefaultIncludedItems)},
		sizeCharts:    DefaultSizeCharts(),
		banner:        DefaultBanner(),
		submissions:   make(map[int][]domain.SubmissionRecord),
		teamPasswords: make(map[string][]byte),
		bcryptCost:    BcryptCost,
		logger:        logger,
	}
}

// WithBcryptCost overrides the password hashing cost.
func (m *MemoryBackend) WithBcryptCost(cost int) *MemoryBackend {
	m.bcryptCost = cost
	return m
}

// =============================================================================
// Seeding
// =============================================================================

// SetLandingPage replaces the landing page for a form. A nil page removes it.
func (m *MemoryBackend) SetLandingPage(formID int, p *LandingPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		delete(m.landingPages, formID)
		return
	}
	m.landingPages[formID] = p
}

// AddProducts appends products to the catalog.
func (m *MemoryBackend) AddProducts(products ...Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, products...)
}

// SeedSubmissions appends existing submissions for a form.
func (m *MemoryBackend) SeedSubmissions(formID int, records ...domain.SubmissionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.FormID = formID
		m.submissions[formID] = append(m.submissions[formID], r)
	}
}

// =============================================================================
// Client
// =============================================================================

func (m *MemoryBackend) LandingPage(ctx context.Context, formID int) (*LandingPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.landingPages[formID]
	if !ok || p == nil || !p.Enabled {
		return nil, WrapError("landing page", ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (m *MemoryBackend) Products(ctx context.Context, filter ProductFilter) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Product
	for _, p := range m.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Submissions(ctx context.Context, formID int) ([]domain.SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.submissions[formID]
	out := make([]domain.SubmissionRecord, len(records))
	for i, r := range records {
		r.Data = maps.Clone(r.Data)
		out[i] = r
	}
	return out, nil
}

func (m *MemoryBackend) KitPricing(ctx context.Context) (domain.KitPricingConfig, error) {
	if err := ctx.Err(); err != nil {
		return domain.KitPricingConfig{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.kitPricing
	cfg.IncludedItems = slices.Clone(cfg.IncludedItems)
	return cfg, nil
}

func (m *MemoryBackend) UpdateKitPricing(ctx context.Context, cfg domain.KitPricingConfig) (domain.KitPricingConfig, error) {
	if err := ctx.Err(); err != nil {
		return domain.KitPricingConfig{}, err
	}
	if cfg.BasePrice < 0 {
		return domain.KitPricingConfig{}, WrapError("update kit pricing", fmt.Errorf("%w: invalid basePrice", ErrRejected))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kitPricing.BasePrice = cfg.BasePrice
	if cfg.IncludedItems != nil {
		m.kitPricing.IncludedItems = cleanItems(cfg.IncludedItems)
	}
	out := m.kitPricing
	out.IncludedItems = slices.Clone(out.IncludedItems)
	return out, nil
}

func (m *MemoryBackend) EntryFeeSettings(ctx context.Context) (domain.EntryFeeConfig, error) {
	if err := ctx.Err(); err != nil {
		return domain.EntryFeeConfig{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.entryFee
	cfg.IncludedItems = slices.Clone(cfg.IncludedItems)
	return cfg, nil
}

func (m *MemoryBackend) UpdateEntryFeeSettings(ctx context.Context, cfg domain.EntryFeeConfig) (domain.EntryFeeConfig, error) {
	if err := ctx.Err(); err != nil {
		return domain.EntryFeeConfig{}, err
	}
	if cfg.BaseFee < 0 {
		return domain.EntryFeeConfig{}, WrapError("update entry fee settings", fmt.Errorf("%w: invalid baseFee", ErrRejected))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryFee.BaseFee = cfg.BaseFee
	if cfg.IncludedItems != nil {
		m.entryFee.IncludedItems = cleanItems(cfg.IncludedItems)
	}
	out := m.entryFee
	out.IncludedItems = slices.Clone(out.IncludedItems)
	return out, nil
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func (m *MemoryBackend) KitSizeCharts(ctx context.Context) (SizeCharts, error) {
	if err := ctx.Err(); err != nil {
		return SizeCharts{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sizeCharts, nil
}

func (m *MemoryBackend) SupporterProducts(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.supporterProducts), nil
}

func (m *MemoryBackend) ShirtDesigns(ctx context.Context, activeOnly bool) ([]ShirtDesign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ShirtDesign
	for _, d := range m.designs {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryBackend) TeamRegistrationBanner(ctx context.Context) (*Banner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := *m.banner
	return &b, nil
}

// CreateSubmission stores the submission under a new id. For team
// registrations it generates a temporary password, keeps only its hash and
// returns the plaintext once in the TeamProfile.
func (m *MemoryBackend) CreateSubmission(ctx context.Context, formID int, data map[string]any) (*domain.SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, WrapError("create submission", fmt.Errorf("%w: form ID and data are required", ErrRejected))
	}

	record := domain.SubmissionRecord{
		ID:     uuid.NewString(),
		FormID: formID,
		Data:   maps.Clone(data),
	}
	result := &domain.SubmissionResult{Submission: record}

	var hash []byte
	if formID == TeamRegistrationFormID {
		password, err := generateTempPassword()
		if err != nil {
			return nil, WrapError("create submission", err)
		}
		hash, err = bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
		if err != nil {
			return nil, WrapError("create submission", err)
		}
		result.TeamProfile = &domain.TeamProfile{
			TeamName: domain.AnyToString(data[teamNameKey]),
			Email:    domain.AnyToString(data[teamEmailKey]),
			Password: password,
		}
	}

	m.mu.Lock()
	m.submissions[formID] = append(m.submissions[formID], record)
	if result.TeamProfile != nil {
		m.teamPasswords[strings.ToLower(result.TeamProfile.Email)] = hash
	}
	m.mu.Unlock()

	m.logger.Info("submission stored", "form_id", formID, "submission_id", record.ID)
	return result, nil
}

// VerifyTeamPassword checks a team's credentials.
func (m *MemoryBackend) VerifyTeamPassword(email, password string) bool {
	m.mu.RLock()
	hash, ok := m.teamPasswords[strings.ToLower(email)]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func generateTempPassword() (string, error) {
	b := make([]byte, TempPasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(b), nil
}

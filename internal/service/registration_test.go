package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/leaguekit/internal/cart"
	"github.com/DukeRupert/leaguekit/internal/collab"
	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/draft"
	"github.com/DukeRupert/leaguekit/internal/engine"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/storage"
)

const (
	equipmentForm = 3
	clientA       = "8a4b8f2e-4d1c-4a55-9a0e-2b5d7c9e1f00"
	clientB       = "1d2e3f40-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
)

type testEnv struct {
	svc     *registrationService
	mem     *storage.MemoryStorage
	backend *collab.MemoryBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := forms.NewBundledRepository(logger)
	require.NoError(t, err)

	mem := storage.NewMemoryStorage()
	backend := collab.NewMemoryBackend(logger).WithBcryptCost(bcrypt.MinCost)
	svc := NewRegistrationService(repo, backend, mem, Config{LoadTimeout: 5 * time.Second}, logger).(*registrationService)
	return &testEnv{svc: svc, mem: mem, backend: backend}
}

func setText(fieldID, text string) engine.Mutation {
	return engine.Mutation{Op: "setText", FieldID: fieldID, Text: text}
}

func TestOpen_ReusesEngine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Open(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	second, err := env.svc.Open(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := env.svc.Open(ctx, clientB, equipmentForm)
	require.NoError(t, err)
	assert.NotSame(t, first, other, "clients never share engines")
}

func TestOpen_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Open(ctx, "", equipmentForm)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = env.svc.Open(ctx, clientA, 999)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestNext_OpensSessionAndReportsMissing(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Next(context.Background(), clientA, equipmentForm)
	require.NoError(t, err)
	assert.False(t, res.Outcome.Advanced)
	assert.Equal(t, []string{"11", "12", "13", "14"}, res.Outcome.Missing)
	assert.NotEmpty(t, res.Outcome.Alert)
	assert.Equal(t, equipmentForm, res.View.FormID)
	assert.Len(t, res.View.ValidationErrors, 4)
}

func TestApply_DraftSurvivesDiscard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientA, equipmentForm, setText("11", "Robin"))
	require.NoError(t, err)

	stored, err := env.mem.Get(ctx, storage.ClientKey(clientA, draft.Key(equipmentForm)))
	require.NoError(t, err)
	assert.Contains(t, string(stored), "Robin")

	env.svc.Discard(clientA, equipmentForm)
	e, err := env.svc.Open(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	assert.Equal(t, "Robin", e.Value("11").Text)

	other, err := env.svc.Open(ctx, clientB, equipmentForm)
	require.NoError(t, err)
	assert.True(t, other.Value("11").IsZero(), "drafts are per client")
}

func TestApply_UnknownFieldIsAnError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Apply(context.Background(), clientA, equipmentForm, setText("nope", "x"))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestSubmit_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, m := range []engine.Mutation{
		setText("11", "Robin"),
		setText("12", "robin@example.com"),
		setText("13", "Advanced"),
		setText("14", "Size 6"),
	} {
		_, err := env.svc.Apply(ctx, clientA, equipmentForm, m)
		require.NoError(t, err)
	}

	res, err := env.svc.Submit(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	assert.True(t, res.Outcome.Submitted)
	assert.True(t, res.View.Submitted)
	assert.NotEmpty(t, res.View.Summary)

	records, err := env.backend.Submissions(ctx, equipmentForm)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	res, err = env.svc.Reset(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	assert.False(t, res.View.Submitted)
	assert.Equal(t, 1, res.View.CurrentPage)
}

func TestCart_PerClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.svc.Cart(ctx, clientA)
	_, err := a.AddToCart(ctx, domain.CartItem{ID: "cap", Name: "Supporter Cap", Price: 25, Quantity: 1}, "", cart.AddOptions{})
	require.NoError(t, err)

	assert.Same(t, a, env.svc.Cart(ctx, clientA))
	assert.Equal(t, 1, env.svc.Cart(ctx, clientA).Count())
	assert.Equal(t, 0, env.svc.Cart(ctx, clientB).Count())

	_, err = env.mem.Get(ctx, storage.ClientKey(clientA, cart.StorageKey))
	assert.NoError(t, err, "cart persisted under the client namespace")
}

func TestSweep_DropsIdleClients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }

	e, err := env.svc.Open(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	_, err = env.svc.Apply(ctx, clientA, equipmentForm, setText("11", "Robin"))
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	env.svc.Cart(ctx, clientB)

	now = now.Add(25 * time.Minute)
	assert.Equal(t, 1, env.svc.Sweep(30*time.Minute), "only the client idle for 35m is dropped")

	reopened, err := env.svc.Open(ctx, clientA, equipmentForm)
	require.NoError(t, err)
	assert.NotSame(t, e, reopened)
	assert.Equal(t, "Robin", reopened.Value("11").Text, "the draft outlives the in-memory session")
}

func TestPageFields(t *testing.T) {
	env := newTestEnv(t)

	fields, err := env.svc.PageFields(1, 2)
	require.NoError(t, err)
	require.NotEmpty(t, fields)
	assert.Equal(t, "22", fields[0].ID)

	_, err = env.svc.PageFields(1, 42)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestListForms(t *testing.T) {
	env := newTestEnv(t)

	assert.Len(t, env.svc.ListForms(0), 4)
	byCategory := env.svc.ListForms(1)
	require.Len(t, byCategory, 1)
	assert.Equal(t, equipmentForm, byCategory[0].ID)
}

func TestPriceSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.UpdateKitPricing(ctx, domain.KitPricingConfig{BasePrice: -1})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	saved, err := env.svc.UpdateKitPricing(ctx, domain.KitPricingConfig{BasePrice: 160, IncludedItems: []string{" Shirt ", "Pants"}})
	require.NoError(t, err)
	assert.Equal(t, 160.0, saved.BasePrice)
	assert.Equal(t, []string{"Shirt", "Pants"}, saved.IncludedItems)

	got, err := env.svc.KitPricing(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	fee, err := env.svc.UpdateEntryFee(ctx, domain.EntryFeeConfig{BaseFee: 450})
	require.NoError(t, err)
	assert.Equal(t, 450.0, fee.BaseFee)

	_, err = env.svc.UpdateEntryFee(ctx, domain.EntryFeeConfig{BaseFee: -5})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

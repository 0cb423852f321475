package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/leaguekit/internal/cart"
	"github.com/DukeRupert/leaguekit/internal/collab"
	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/draft"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/media"
	"github.com/DukeRupert/leaguekit/internal/storage"
)

const (
	teamForm   = 1
	playerForm = 2
	flatForm   = 3
	lionsID    = "team-lions"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	repo    *forms.Repository
	backend *collab.MemoryBackend
	client  collab.Client
	mem     *storage.MemoryStorage
	cart    *cart.Store
	drafts  *draft.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := discardLogger()
	repo, err := forms.NewBundledRepository(logger)
	require.NoError(t, err)

	backend := collab.NewMemoryBackend(logger).WithBcryptCost(bcrypt.MinCost)
	mem := storage.NewMemoryStorage()
	c := cart.New(mem, logger)
	c.Hydrate(context.Background())

	return &fixture{
		repo:    repo,
		backend: backend,
		client:  backend,
		mem:     mem,
		cart:    c,
		drafts:  draft.New(mem, logger),
	}
}

// seedLions registers the Lions team with a 20.00 kit markup and a Lions U13
// age group team.
func (fx *fixture) seedLions() {
	fx.backend.SeedSubmissions(teamForm, domain.SubmissionRecord{
		ID: lionsID,
		Data: map[string]any{
			"1":                 "Lions",
			"2":                 "Sam Manager",
			"3":                 "lions@example.com",
			"5":                 "Rondebosch",
			"23":                "1",
			"23_primaryColor":   "#DC2626",
			"23_secondaryColor": "#2563EB",
			"29_basePrice":      150.0,
			"29_markup":         20.0,
			"33": []any{
				map[string]any{"teamName": "Lions U13", "gender": "boys", "ageGroup": "U13", "coachName": "Coach", "coachContact": "0820000000"},
			},
		},
	})
}

func (fx *fixture) open(t *testing.T, formID int) *Engine {
	t.Helper()
	tmpl, err := fx.repo.Get(formID)
	require.NoError(t, err)

	e := New(tmpl, Deps{
		Templates: fx.repo,
		Collab:    fx.client,
		Cart:      fx.cart,
		Drafts:    fx.drafts,
		Media:     media.NewRecompressor(media.DefaultThreshold),
		Logger:    discardLogger(),
	})
	ctx := context.Background()
	e.Load(ctx)
	require.NoError(t, e.Wait(ctx))
	t.Cleanup(e.Close)
	return e
}

// mustOK fails the test on an error or an alert. Call it as
// mustOK(t)(e.SetText(...)).
func mustOK(t *testing.T) func(Outcome, error) Outcome {
	t.Helper()
	return func(out Outcome, err error) Outcome {
		t.Helper()
		require.NoError(t, err)
		require.Empty(t, out.Alert, "unexpected alert")
		return out
	}
}

func fillTeamPage1(t *testing.T, e *Engine, name, email string) {
	t.Helper()
	ctx := context.Background()
	mustOK(t)(e.SetText(ctx, "1", name))
	mustOK(t)(e.SetText(ctx, "2", "Alex Manager"))
	mustOK(t)(e.SetText(ctx, "35", "0821234567"))
	mustOK(t)(e.SetText(ctx, "3", email))
	mustOK(t)(e.SetEntries(ctx, "33", []domain.TeamEntry{
		{TeamName: name + " U13", Gender: "girls", AgeGroup: "U13", CoachName: "Coach", CoachContact: "0821111111"},
	}))
}

func fillTeamPage2(t *testing.T, e *Engine, primary, secondary string) {
	t.Helper()
	ctx := context.Background()
	mustOK(t)(e.SetText(ctx, "22", "https://cdn.example.com/logo.png"))
	mustOK(t)(e.SetText(ctx, "23", "2"))
	mustOK(t)(e.SetColor(ctx, "23", domain.SuffixPrimaryColor, primary))
	mustOK(t)(e.SetColor(ctx, "23", domain.SuffixSecondaryColor, secondary))
}

// =============================================================================
// Validation and Navigation
// =============================================================================

func TestNextPage_BlocksOnMissingFields(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	mustOK(t)(e.SetText(ctx, "1", "Tigers"))

	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, []string{"2", "35", "3", "33"}, out.Missing)
	assert.Equal(t, "2", out.FocusKey)
	assert.NotEmpty(t, out.Alert)
	assert.Equal(t, []string{"2", "3", "33", "35"}, e.ValidationErrors())

	mustOK(t)(e.SetText(ctx, "2", "Alex"))
	assert.NotContains(t, e.ValidationErrors(), "2", "a key clears as soon as it is valid")
	assert.Contains(t, e.ValidationErrors(), "3")
}

func TestNextPage_SingleMissingFieldBlocks(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	mustOK(t)(e.SetText(ctx, "1", "Tigers"))
	mustOK(t)(e.SetText(ctx, "2", "Alex Manager"))
	mustOK(t)(e.SetText(ctx, "3", "tigers@example.com"))
	mustOK(t)(e.SetEntries(ctx, "33", []domain.TeamEntry{
		{TeamName: "Tigers U13", Gender: "girls", AgeGroup: "U13", CoachName: "Coach", CoachContact: "0821111111"},
	}))

	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	assert.Equal(t, 1, e.Page(), "no page is skipped")
	assert.Equal(t, []string{"35"}, out.Missing)
	assert.Equal(t, []string{"35"}, e.ValidationErrors())
}

func TestNextPage_AdvancesWhenComplete(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	assert.Equal(t, "1", e.Value("32").Text, "default applied on load")
	fillTeamPage1(t, e, "Tigers", "tigers@example.com")

	out := mustOK(t)(e.NextPage(ctx))
	assert.True(t, out.Advanced)
	assert.Equal(t, 2, out.Page)

	view := e.View()
	require.Len(t, view.Fields, 3)
	assert.Equal(t, "22", view.Fields[0].ID, "pinned fields come first")
	assert.Equal(t, "30", view.Fields[1].ID)

	out = mustOK(t)(e.PrevPage(ctx))
	assert.Equal(t, 1, out.Page)
	out = mustOK(t)(e.PrevPage(ctx))
	assert.Equal(t, 1, out.Page, "never below the first page")
}

func TestNextPage_EntriesFollowCount(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	fillTeamPage1(t, e, "Tigers", "tigers@example.com")
	mustOK(t)(e.SetText(ctx, "32", "2"))

	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"33"}, out.Missing, "second entry is missing")

	mustOK(t)(e.SetText(ctx, "32", "1"))
	assert.NotContains(t, e.ValidationErrors(), "33")

	out, err = e.SetText(ctx, "32", "25")
	require.NoError(t, err)
	assert.Equal(t, "Please enter a number between 1 and 20.", out.Alert)
	assert.Equal(t, "1", e.Value("32").Text, "rejected input is not stored")
}

func TestNextPage_DuplicateTeamIdentity(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	e := fx.open(t, teamForm)
	ctx := context.Background()

	fillTeamPage1(t, e, "  LIONS ", "LIONS@example.com")

	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	assert.Equal(t, "1", out.FocusKey, "name is checked before email")
	assert.Contains(t, out.Alert, "team name")

	mustOK(t)(e.SetText(ctx, "1", "Leopards"))
	assert.Empty(t, e.ValidationErrors())

	out, err = e.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3", out.FocusKey)
	assert.Contains(t, out.Alert, "email")

	mustOK(t)(e.SetText(ctx, "3", "leopards@example.com"))
	out = mustOK(t)(e.NextPage(ctx))
	assert.True(t, out.Advanced)
}

func TestSetColor_RejectsWhite(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	out, err := e.SetColor(ctx, "23", domain.SuffixPrimaryColor, "#fff")
	require.NoError(t, err)
	assert.Contains(t, out.Alert, "White")
	assert.Equal(t, "23_primaryColor", out.FocusKey)
	assert.Empty(t, e.Value("23").Colors.Primary)
	assert.NotEmpty(t, e.FieldMessage("23_primaryColor"))

	mustOK(t)(e.SetColor(ctx, "23", domain.SuffixPrimaryColor, "#123456"))
	assert.Empty(t, e.FieldMessage("23_primaryColor"))

	_, err = e.SetColor(ctx, "23", domain.SuffixShirtSize, "#123456")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestNextPage_DuplicateColors(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	e := fx.open(t, teamForm)
	ctx := context.Background()

	fillTeamPage1(t, e, "Tigers", "tigers@example.com")
	mustOK(t)(e.NextPage(ctx))

	fillTeamPage2(t, e, "#dc2626", "#2563eb")
	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, out.Advanced)
	assert.Equal(t, "23", out.FocusKey)
	assert.Contains(t, out.Alert, "color combination")

	mustOK(t)(e.SetColor(ctx, "23", domain.SuffixTrimColor, "#000000"))
	out = mustOK(t)(e.NextPage(ctx))
	assert.True(t, out.Advanced, "a palette differing in one channel is accepted")
}

func TestSetters_RejectWrongFieldType(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	_, err := e.SetSize(ctx, "1", domain.SuffixSize, "Small")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = e.SetText(ctx, "999", "x")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = e.Apply(ctx, Mutation{Op: "explode", FieldID: "1"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = e.Apply(ctx, Mutation{Op: "setMarkup", FieldID: "29"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "pricing ops need a number")
}

func TestPricingFields(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.backend.UpdateKitPricing(context.Background(), domain.KitPricingConfig{BasePrice: 160})
	require.NoError(t, err)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	view := e.View()
	assert.Equal(t, 160.0, view.Quotes["29"].Base, "league configuration loaded into the field")
	assert.Equal(t, 500.0, view.Quotes["31"].Base)
	assert.NotEmpty(t, view.IncludedItems["31"])

	markup := 25.5
	mustOK(t)(e.Apply(ctx, Mutation{Op: "setMarkup", FieldID: "29", Number: &markup}))
	mustOK(t)(e.SetAdjustment(ctx, "31", -50))

	view = e.View()
	assert.Equal(t, "185.50", view.Quotes["29"].Display())
	assert.Equal(t, "450.00", view.Quotes["31"].Display())
	assert.Equal(t, 25.5, view.Values["29_markup"])

	out, err := e.SetBasePrice(ctx, "29", -1)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Alert)
}

// =============================================================================
// Player Registration
// =============================================================================

func TestSelectSubmission_AutofillsFromTeam(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	e := fx.open(t, playerForm)
	ctx := context.Background()

	view := e.View()
	require.Len(t, view.Options["8"], 1)
	assert.Equal(t, Option{ID: lionsID, Label: "Lions"}, view.Options["8"][0])

	mustOK(t)(e.SelectSubmission(ctx, "8", lionsID))

	assert.Equal(t, "Sam Manager", e.Prefilled()["8_2"])
	assert.Equal(t, "Rondebosch", e.Prefilled()["8_5"])
	design := e.Value("24")
	assert.Equal(t, "1", design.Text)
	assert.Equal(t, "#DC2626", design.Colors.Primary)
	assert.Equal(t, "#2563EB", design.Colors.Secondary)

	subTeams := e.View().SubTeams["34"]
	require.Len(t, subTeams, 1)
	assert.Equal(t, "Lions U13", subTeams[0].TeamName)

	mustOK(t)(e.SetSubTeam(ctx, "34", &subTeams[0]))
	out, err := e.SetSubTeam(ctx, "34", &domain.SubTeam{TeamName: "Tigers U9"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Alert, "sub-team must belong to the selected team")

	mustOK(t)(e.SelectSubmission(ctx, "8", ""))
	assert.Empty(t, e.Prefilled())
	assert.True(t, e.Value("24").IsZero())
	assert.Nil(t, e.Value("34").SubTeam, "sub-team cleared with its team")

	_, err = e.SelectSubmission(ctx, "8", "nope")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = e.SetColor(ctx, "24", domain.SuffixPrimaryColor, "#000000")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "autofilled colors are read-only")
}

func fillPlayerToKitPage(t *testing.T, e *Engine, shirtNumber string) Outcome {
	t.Helper()
	ctx := context.Background()
	mustOK(t)(e.SetText(ctx, "37", "Pat Parent"))
	mustOK(t)(e.SetText(ctx, "38", "pat@example.com"))
	mustOK(t)(e.SetText(ctx, "39", "s3cret!"))
	mustOK(t)(e.SetText(ctx, "40", "0820000001"))
	mustOK(t)(e.NextPage(ctx))

	mustOK(t)(e.SelectSubmission(ctx, "8", lionsID))
	mustOK(t)(e.SetSubTeam(ctx, "34", &domain.SubTeam{TeamName: "Lions U13", Gender: "boys", AgeGroup: "U13"}))
	mustOK(t)(e.SetText(ctx, "42", "Jo Player"))
	mustOK(t)(e.SetText(ctx, "43", "2013-04-01"))
	mustOK(t)(e.SetText(ctx, "46", shirtNumber))
	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	return out
}

func TestKitReconciliation(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	e := fx.open(t, playerForm)
	ctx := context.Background()

	out := fillPlayerToKitPage(t, e, "10")
	require.True(t, out.Advanced)
	assert.Empty(t, fx.cart.Snapshot().KitLines(), "no kit line before sizes are chosen")

	mustOK(t)(e.SetSize(ctx, "25", domain.SuffixShirtSize, "Small"))
	assert.Empty(t, fx.cart.Snapshot().KitLines(), "pants size still missing")

	mustOK(t)(e.SetSize(ctx, "25", domain.SuffixPantsSize, "Medium"))
	lines := fx.cart.Snapshot().KitLines()
	require.Len(t, lines, 1)
	assert.Equal(t, 170.0, lines[0].Price, "team markup inherited")
	assert.Equal(t, "Shirt: Small / Pants: Medium", lines[0].SelectedSize)
	assert.Equal(t, "Basic Kit", lines[0].Name)
	assert.Equal(t, "170.00", e.View().Quotes["25"].Display())

	mustOK(t)(e.SetSize(ctx, "25", domain.SuffixPantsSize, "Large"))
	lines = fx.cart.Snapshot().KitLines()
	require.Len(t, lines, 1, "exactly one kit line")
	assert.Equal(t, "Shirt: Small / Pants: Large", lines[0].SelectedSize)

	out, err := e.SetSize(ctx, "25", domain.SuffixPantsSize, "Huge")
	require.NoError(t, err)
	assert.NotEmpty(t, out.Alert)

	mustOK(t)(e.SetSize(ctx, "25", domain.SuffixShirtSize, ""))
	assert.Empty(t, fx.cart.Snapshot().KitLines())
}

func TestNextPage_JerseyCollision(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	fx.backend.SeedSubmissions(playerForm, domain.SubmissionRecord{
		ID: "player-1",
		Data: map[string]any{
			"8":  lionsID,
			"34": `{"teamName":"Lions U13","gender":"Boys","ageGroup":"U13"}`,
			"46": "10",
		},
	})
	e := fx.open(t, playerForm)
	ctx := context.Background()

	out := fillPlayerToKitPage(t, e, "10")
	assert.False(t, out.Advanced)
	assert.Equal(t, "46", out.FocusKey)
	assert.Contains(t, out.Alert, "already taken")

	mustOK(t)(e.SetText(ctx, "46", "11"))
	out = mustOK(t)(e.NextPage(ctx))
	assert.True(t, out.Advanced)

	out, err := e.SetText(ctx, "46", "7a")
	require.NoError(t, err)
	assert.Equal(t, "Please enter a valid number.", out.Alert)
}

func TestJerseyCollision_ClearsWhenTeamOrSubTeamChanges(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	fx.backend.SeedSubmissions(teamForm, domain.SubmissionRecord{
		ID: "team-bears",
		Data: map[string]any{
			"1": "Bears",
			"3": "bears@example.com",
			"33": []any{
				map[string]any{"teamName": "Bears U13", "gender": "boys", "ageGroup": "U13", "coachName": "Coach", "coachContact": "0820000002"},
			},
		},
	})
	fx.backend.SeedSubmissions(playerForm, domain.SubmissionRecord{
		ID: "player-1",
		Data: map[string]any{
			"8":  lionsID,
			"34": `{"teamName":"Lions U13","gender":"Boys","ageGroup":"U13"}`,
			"46": "10",
		},
	})
	e := fx.open(t, playerForm)
	ctx := context.Background()
	lionsU13 := &domain.SubTeam{TeamName: "Lions U13", Gender: "boys", AgeGroup: "U13"}

	out := fillPlayerToKitPage(t, e, "10")
	require.False(t, out.Advanced)
	require.Contains(t, e.ValidationErrors(), "46")

	mustOK(t)(e.SetSubTeam(ctx, "34", nil))
	assert.NotContains(t, e.ValidationErrors(), "46", "sub-team change clears the collision")

	mustOK(t)(e.SetSubTeam(ctx, "34", lionsU13))
	out, err := e.NextPage(ctx)
	require.NoError(t, err)
	require.False(t, out.Advanced)
	require.Contains(t, e.ValidationErrors(), "46")

	mustOK(t)(e.SelectSubmission(ctx, "8", "team-bears"))
	assert.NotContains(t, e.ValidationErrors(), "46", "team change clears the collision")
	assert.Equal(t, "10", e.Value("46").Text, "the number itself is kept")
}

// =============================================================================
// Drafts
// =============================================================================

func TestDraft_RestoredAcrossEngines(t *testing.T) {
	fx := newFixture(t)
	fx.seedLions()
	ctx := context.Background()

	e := fx.open(t, playerForm)
	mustOK(t)(e.SetText(ctx, "37", "Pat Parent"))
	mustOK(t)(e.SetText(ctx, "38", "pat@example.com"))
	mustOK(t)(e.SetText(ctx, "39", "s3cret!"))
	mustOK(t)(e.SetText(ctx, "40", "0820000001"))
	mustOK(t)(e.NextPage(ctx))
	mustOK(t)(e.SelectSubmission(ctx, "8", lionsID))
	e.Close()

	restored := fx.open(t, playerForm)
	assert.Equal(t, 2, restored.Page())
	assert.Equal(t, "Pat Parent", restored.Value("37").Text)
	assert.Empty(t, restored.Value("39").Text, "passwords are never persisted")
	assert.Equal(t, lionsID, restored.Value("8").Text)
	assert.Equal(t, "Sam Manager", restored.Prefilled()["8_2"])
}

func TestLoad_ReportsRestoredDraft(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	tmpl, err := fx.repo.Get(flatForm)
	require.NoError(t, err)
	deps := Deps{Templates: fx.repo, Drafts: fx.drafts, Logger: discardLogger()}

	first := New(tmpl, deps)
	assert.False(t, first.Load(ctx), "nothing saved yet")
	mustOK(t)(first.SetText(ctx, "11", "Robin"))
	first.Close()

	second := New(tmpl, deps)
	t.Cleanup(second.Close)
	assert.True(t, second.Load(ctx))
	assert.Equal(t, "Robin", second.Value("11").Text)
}

// =============================================================================
// Submission
// =============================================================================

func TestSubmit_FlatForm(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, flatForm)
	ctx := context.Background()

	out, err := e.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, out.Submitted)
	assert.Equal(t, []string{"11", "12", "13", "14"}, out.Missing)

	mustOK(t)(e.SetText(ctx, "11", "Robin"))
	mustOK(t)(e.SetText(ctx, "12", "robin@example.com"))
	mustOK(t)(e.SetText(ctx, "13", "Advanced"))
	mustOK(t)(e.SetText(ctx, "14", "Size 6"))
	mustOK(t)(e.ToggleOption(ctx, "15", "Bats", true))
	mustOK(t)(e.ToggleOption(ctx, "15", "Pads", true))
	mustOK(t)(e.ToggleOption(ctx, "15", "Bats", false))

	out = mustOK(t)(e.NextPage(ctx))
	assert.True(t, out.Submitted, "next on the last page submits")
	assert.Nil(t, out.TeamProfile)
	assert.True(t, e.Submitted())

	summary := e.Summary()
	require.Len(t, summary, 5)
	assert.Equal(t, SummaryItem{FieldID: "15", Label: "Equipment Interests", Value: "Pads"}, summary[4])

	records, err := fx.backend.Submissions(ctx, flatForm)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Robin", records[0].String("11"))

	_, err = fx.mem.Get(ctx, draft.Key(flatForm))
	assert.True(t, storage.IsNotFound(err), "draft cleared after submission")

	_, err = e.Submit(ctx)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "submits exactly once")

	_, err = e.SetText(ctx, "11", "Again")
	assert.Error(t, err)

	out = e.Reset(ctx)
	assert.Equal(t, 1, out.Page)
	assert.False(t, e.Submitted())
	assert.True(t, e.Value("11").IsZero())
}

func TestSubmit_TeamRegistrationReturnsProfile(t *testing.T) {
	fx := newFixture(t)
	e := fx.open(t, teamForm)
	ctx := context.Background()

	fillTeamPage1(t, e, "Tigers", "tigers@example.com")
	mustOK(t)(e.NextPage(ctx))
	fillTeamPage2(t, e, "#111111", "#222222")
	mustOK(t)(e.NextPage(ctx))
	mustOK(t)(e.SetMarkup(ctx, "29", 20))

	out := mustOK(t)(e.NextPage(ctx))
	require.True(t, out.Submitted)
	require.NotNil(t, out.TeamProfile)
	assert.Equal(t, "Tigers", out.TeamProfile.TeamName)
	assert.True(t, fx.backend.VerifyTeamPassword("tigers@example.com", out.TeamProfile.Password))

	for _, item := range e.Summary() {
		assert.NotEqual(t, "22", item.FieldID, "uploads are not summarized")
		assert.NotEqual(t, "29", item.FieldID, "pricing is not summarized")
	}

	records, err := fx.backend.Submissions(ctx, teamForm)
	require.NoError(t, err)
	require.Len(t, records, 1)
	markup, ok := records[0].Number("29_markup")
	require.True(t, ok)
	assert.Equal(t, 20.0, markup)
}

type failingSubmitter struct {
	*collab.MemoryBackend
}

func (failingSubmitter) CreateSubmission(context.Context, int, map[string]any) (*domain.SubmissionResult, error) {
	return nil, collab.WrapError("create submission", collab.ErrUnavailable)
}

func TestSubmit_FailureKeepsEditing(t *testing.T) {
	fx := newFixture(t)
	fx.client = failingSubmitter{fx.backend}
	e := fx.open(t, flatForm)
	ctx := context.Background()

	mustOK(t)(e.SetText(ctx, "11", "Robin"))
	mustOK(t)(e.SetText(ctx, "12", "robin@example.com"))
	mustOK(t)(e.SetText(ctx, "13", "Advanced"))
	mustOK(t)(e.SetText(ctx, "14", "Size 6"))

	out, err := e.Submit(ctx)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.NotEmpty(t, out.Alert)
	assert.False(t, e.Submitted())

	snap, ok := fx.drafts.Restore(ctx, flatForm)
	require.True(t, ok, "draft kept for a retry")
	assert.Equal(t, "Robin", snap.FormData["11"])

	mustOK(t)(e.SetText(ctx, "11", "Robin Hood"))
}

// =============================================================================
// Loading
// =============================================================================

type unavailableLanding struct {
	*collab.MemoryBackend
}

func (unavailableLanding) LandingPage(context.Context, int) (*collab.LandingPage, error) {
	return nil, collab.WrapError("landing page", collab.ErrUnavailable)
}

func TestLoad_LandingPageFallback(t *testing.T) {
	fx := newFixture(t)
	fx.client = unavailableLanding{fx.backend}
	e := fx.open(t, teamForm)

	view := e.View()
	require.NotNil(t, view.LandingPage)
	assert.Equal(t, "Register Your Team", view.LandingPage.Hero.Title)
	require.NotNil(t, view.Banner)

	fx = newFixture(t)
	fx.backend.SetLandingPage(teamForm, nil)
	e = fx.open(t, teamForm)
	assert.Nil(t, e.View().LandingPage, "a disabled landing page is not shown")
}

type blockingLanding struct {
	*collab.MemoryBackend
	release chan struct{}
}

func (b blockingLanding) LandingPage(ctx context.Context, formID int) (*collab.LandingPage, error) {
	<-b.release
	return b.MemoryBackend.LandingPage(ctx, formID)
}

func TestLoad_DropsResultsAfterClose(t *testing.T) {
	fx := newFixture(t)
	release := make(chan struct{})
	tmpl, err := fx.repo.Get(flatForm)
	require.NoError(t, err)
	fx.backend.SetLandingPage(flatForm, &collab.LandingPage{FormID: flatForm, Enabled: true})

	e := New(tmpl, Deps{
		Templates: fx.repo,
		Collab:    blockingLanding{MemoryBackend: fx.backend, release: release},
		Logger:    discardLogger(),
	})
	ctx := context.Background()
	e.Load(ctx)
	e.Close()
	close(release)
	require.NoError(t, e.Wait(ctx))

	assert.Nil(t, e.View().LandingPage)
}

func TestLoad_CancelledContext(t *testing.T) {
	fx := newFixture(t)
	tmpl, err := fx.repo.Get(teamForm)
	require.NoError(t, err)

	e := New(tmpl, Deps{Templates: fx.repo, Collab: fx.backend, Logger: discardLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Load(ctx)
	require.NoError(t, e.Wait(context.Background()))

	view := e.View()
	assert.Nil(t, view.LandingPage)
	assert.Equal(t, 150.0, view.Quotes["29"].Base, "declared base used until configuration loads")
	assert.False(t, view.Quotes["29"].Configured)
}

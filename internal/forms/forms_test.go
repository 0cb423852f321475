package forms

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewBundledRepository(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return repo
}

func fieldIDs(fields []domain.Field) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}

func TestLoadBundled(t *testing.T) {
	templates, err := LoadBundled()
	require.NoError(t, err)
	require.Len(t, templates, 4)

	team := templates[0]
	assert.Equal(t, 1, team.ID)
	assert.Equal(t, domain.FormKindTeamRegistration, team.Kind)
	assert.True(t, team.IsMultiPage())
	assert.Equal(t, 3, TotalPages(&team))

	player := templates[1]
	bundle, ok := FindField(&player, "25")
	require.True(t, ok)
	assert.Equal(t, domain.FieldProductBundle, bundle.Type)
	assert.Equal(t, 150.0, bundle.BasePrice)
	assert.True(t, bundle.IsEquipmentBundle())
	assert.Equal(t, bundle.ShirtSizeOptions, bundle.PantsSizeOptions)
}

func TestFieldsForPage(t *testing.T) {
	repo := testRepository(t)

	tests := []struct {
		name   string
		formID int
		pageID int
		want   []string
	}{
		{
			name:   "sorted by order with fractional order",
			formID: 1,
			pageID: 1,
			want:   []string{"1", "2", "35", "3", "32", "33", "5"},
		},
		{
			name:   "override pins logo fields first",
			formID: 1,
			pageID: 2,
			want:   []string{"22", "30", "23"},
		},
		{
			name:   "single page template answers page one",
			formID: 3,
			pageID: 1,
			want:   []string{"11", "12", "13", "14", "15"},
		},
		{
			name:   "unknown page",
			formID: 1,
			pageID: 9,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := repo.Get(tt.formID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fieldIDs(FieldsForPage(tmpl, tt.pageID)))
		})
	}
}

func TestFieldsForPage_StableTies(t *testing.T) {
	tmpl := &domain.FormTemplate{
		ID:     9,
		Name:   "ties",
		Fields: []domain.Field{
			{ID: "b", Type: domain.FieldText, Label: "B", Order: 1},
			{ID: "a", Type: domain.FieldText, Label: "A", Order: 1},
			{ID: "c", Type: domain.FieldText, Label: "C", Order: 0.5},
		},
	}
	assert.Equal(t, []string{"c", "b", "a"}, fieldIDs(FieldsForPage(tmpl, 1)))
}

func TestPageOf(t *testing.T) {
	repo := testRepository(t)
	tmpl, err := repo.Get(2)
	require.NoError(t, err)

	assert.Equal(t, 2, PageOf(tmpl, "8"))
	assert.Equal(t, 3, PageOf(tmpl, "25"))
	assert.Equal(t, 5, PageOf(tmpl, "28"))
	assert.Equal(t, 0, PageOf(tmpl, "999"))
	assert.Len(t, FieldsOfType(tmpl, domain.FieldTel), 2)
}

func TestRepository_ReturnsCopies(t *testing.T) {
	repo := testRepository(t)

	first, err := repo.Get(1)
	require.NoError(t, err)
	first.Name = "mutated"
	first.Pages[0].Fields[0].Label = "mutated"

	second, err := repo.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Team Registration", second.Name)
	assert.Equal(t, "Team Name", second.Pages[0].Fields[0].Label)
}

func TestRepository_ByCategory(t *testing.T) {
	repo := testRepository(t)

	got := repo.ByCategory(2)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].ID)
	assert.Empty(t, repo.ByCategory(42))
}

func TestRepository_PutAndDelete(t *testing.T) {
	repo := testRepository(t)

	stored, err := repo.Put(domain.FormTemplate{
		Name:   "Umpire Application",
		Fields: []domain.Field{{ID: "u1", Type: domain.FieldText, Label: "Name", Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, stored.ID)
	assert.True(t, stored.Active)

	require.NoError(t, repo.Delete(5))
	_, err = repo.Get(5)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestRepository_FieldManagement(t *testing.T) {
	repo := testRepository(t)

	added, err := repo.AddField(4, domain.Field{Type: domain.FieldEmail, Label: "Email"})
	require.NoError(t, err)
	assert.Equal(t, "100", added.ID)
	assert.Equal(t, 7.0, added.Order)

	require.NoError(t, repo.DeleteField(4, "16"))
	tmpl, err := repo.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, tmpl.Fields[0].Order)

	ids := fieldIDs(tmpl.Fields)
	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	require.NoError(t, repo.ReorderFields(4, reversed))
	tmpl, err = repo.Get(4)
	require.NoError(t, err)
	assert.Equal(t, reversed, fieldIDs(FieldsForPage(tmpl, 1)))

	_, err = repo.AddField(1, domain.Field{Type: domain.FieldText, Label: "x"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "multi-page templates are edited through Put")
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown field type",
			yaml: `
templates:
  - id: 1
    name: Bad
    fields:
      - {id: "1", type: hologram, label: X}
`,
		},
		{
			name: "duplicate field id across pages",
			yaml: `
templates:
  - id: 1
    name: Bad
    multiPage: true
    pages:
      - pageId: 1
        fields: [{id: "1", type: text, label: A}]
      - pageId: 2
        fields: [{id: "1", type: text, label: B}]
`,
		},
		{
			name: "pinned field on another page",
			yaml: `
templates:
  - id: 1
    name: Bad
    multiPage: true
    pageOverrides: [{pageId: 2, pinFirst: ["1"]}]
    pages:
      - pageId: 1
        fields: [{id: "1", type: text, label: A}]
      - pageId: 2
        fields: [{id: "2", type: text, label: B}]
`,
		},
		{
			name: "missing label",
			yaml: `
templates:
  - id: 1
    name: Bad
    fields: [{id: "1", type: text}]
`,
		},
		{
			name: "not yaml",
			yaml: "templates: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

// Package forms holds the template repository and page traversal helpers.
//
// Templates are constructed once (from the bundled YAML or a caller-supplied
// list) and handed to consumers by reference. Every read returns a deep copy,
// so no caller can mutate repository state behind another request's back.
package forms

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

// Repository stores form templates.
type Repository struct {
	mu          sync.RWMutex
	templates   map[int]*domain.FormTemplate
	nextID      int
	nextFieldID int
	logger      *slog.Logger
}

// NewRepository creates a repository seeded with templates.
func NewRepository(templates []domain.FormTemplate, logger *slog.Logger) (*Repository, error) {
	r := &Repository{
		templates:   make(map[int]*domain.FormTemplate, len(templates)),
		nextID:      1,
		nextFieldID: 100,
		logger:      logger,
	}
	for i := range templates {
		t := cloneTemplate(&templates[i])
		if err := Validate(t); err != nil {
			return nil, err
		}
		if _, dup := r.templates[t.ID]; dup {
			return nil, domain.Invalid("forms.NewRepository", fmt.Sprintf("template %d declared more than once", t.ID))
		}
		r.templates[t.ID] = t
		if t.ID >= r.nextID {
			r.nextID = t.ID + 1
		}
	}
	return r, nil
}

// NewBundledRepository creates a repository from the embedded templates.
func NewBundledRepository(logger *slog.Logger) (*Repository, error) {
	templates, err := LoadBundled()
	if err != nil {
		return nil, err
	}
	return NewRepository(templates, logger)
}

// =============================================================================
// Reads
// =============================================================================

// Get returns a copy of the template with id.
func (r *Repository) Get(id int) (*domain.FormTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, domain.NotFound("Repository.Get", "form template", fmt.Sprint(id))
	}
	return cloneTemplate(t), nil
}

// List returns copies of all templates ordered by id.
func (r *Repository) List() []*domain.FormTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.FormTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns active templates tagged with categoryID.
func (r *Repository) ByCategory(categoryID int) []*domain.FormTemplate {
	var out []*domain.FormTemplate
	for _, t := range r.List() {
		if t.Active && slices.Contains(t.CategoryIDs, categoryID) {
			out = append(out, t)
		}
	}
	return out
}

// =============================================================================
// Writes
// =============================================================================

// Put validates and stores a template. A zero id allocates a new one.
func (r *Repository) Put(t domain.FormTemplate) (*domain.FormTemplate, error) {
	const op = "Repository.Put"

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneTemplate(&t)
	if stored.ID == 0 {
		stored.ID = r.nextID
		stored.Active = true
	}
	if err := Validate(stored); err != nil {
		return nil, err
	}

	r.templates[stored.ID] = stored
	if stored.ID >= r.nextID {
		r.nextID = stored.ID + 1
	}

	r.logger.Info("template stored", "op", op, "form_id", stored.ID)
	return cloneTemplate(stored), nil
}

// Delete removes a template.
func (r *Repository) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return domain.NotFound("Repository.Delete", "form template", fmt.Sprint(id))
	}
	delete(r.templates, id)
	return nil
}

// AddField appends a field to a single-page template, allocating its id and
// placing it last.
func (r *Repository) AddField(formID int, f domain.Field) (domain.Field, error) {
	const op = "Repository.AddField"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.flatTemplate(op, formID)
	if err != nil {
		return domain.Field{}, err
	}
	if !f.Type.IsValid() {
		return domain.Field{}, domain.Invalid(op, fmt.Sprintf("unknown field type %q", f.Type))
	}

	f = cloneField(f)
	f.ID = fmt.Sprint(r.nextFieldID)
	r.nextFieldID++
	f.Order = float64(len(t.Fields) + 1)
	t.Fields = append(t.Fields, f)
	return cloneField(f), nil
}

// UpdateField replaces a field of a single-page template, keeping its id.
func (r *Repository) UpdateField(formID int, f domain.Field) (domain.Field, error) {
	const op = "Repository.UpdateField"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.flatTemplate(op, formID)
	if err != nil {
		return domain.Field{}, err
	}
	for i := range t.Fields {
		if t.Fields[i].ID == f.ID {
			next := cloneTemplate(t)
			next.Fields[i] = cloneField(f)
			if err := Validate(next); err != nil {
				return domain.Field{}, err
			}
			r.templates[formID] = next
			return cloneField(f), nil
		}
	}
	return domain.Field{}, domain.NotFound(op, "field", f.ID)
}

// DeleteField removes a field and renumbers the remaining orders.
func (r *Repository) DeleteField(formID int, fieldID string) error {
	const op = "Repository.DeleteField"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.flatTemplate(op, formID)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(t.Fields, func(f domain.Field) bool { return f.ID == fieldID })
	if idx < 0 {
		return domain.NotFound(op, "field", fieldID)
	}
	t.Fields = slices.Delete(t.Fields, idx, idx+1)
	for i := range t.Fields {
		t.Fields[i].Order = float64(i + 1)
	}
	return nil
}

// ReorderFields rewrites field order to match fieldIDs.
func (r *Repository) ReorderFields(formID int, fieldIDs []string) error {
	const op = "Repository.ReorderFields"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.flatTemplate(op, formID)
	if err != nil {
		return err
	}
	if len(fieldIDs) != len(t.Fields) {
		return domain.Invalid(op, "reorder must list every field exactly once")
	}

	reordered := make([]domain.Field, 0, len(fieldIDs))
	for i, id := range fieldIDs {
		idx := slices.IndexFunc(t.Fields, func(f domain.Field) bool { return f.ID == id })
		if idx < 0 {
			return domain.NotFound(op, "field", id)
		}
		f := t.Fields[idx]
		f.Order = float64(i + 1)
		reordered = append(reordered, f)
	}
	t.Fields = reordered
	return nil
}

func (r *Repository) flatTemplate(op string, formID int) (*domain.FormTemplate, error) {
	t, ok := r.templates[formID]
	if !ok {
		return nil, domain.NotFound(op, "form template", fmt.Sprint(formID))
	}
	if t.IsMultiPage() {
		return nil, domain.Invalid(op, "field management applies to single-page templates only")
	}
	return t, nil
}

// =============================================================================
// Copying
// =============================================================================

func cloneTemplate(t *domain.FormTemplate) *domain.FormTemplate {
	out := *t
	out.CategoryIDs = slices.Clone(t.CategoryIDs)
	out.Fields = cloneFields(t.Fields)
	if t.Pages != nil {
		out.Pages = make([]domain.Page, len(t.Pages))
		for i, p := range t.Pages {
			out.Pages[i] = domain.Page{PageID: p.PageID, Title: p.Title, Fields: cloneFields(p.Fields)}
		}
	}
	if t.PageOverrides != nil {
		out.PageOverrides = make([]domain.PageOverride, len(t.PageOverrides))
		for i, o := range t.PageOverrides {
			out.PageOverrides[i] = domain.PageOverride{PageID: o.PageID, PinFirst: slices.Clone(o.PinFirst)}
		}
	}
	return &out
}

func cloneFields(fields []domain.Field) []domain.Field {
	if fields == nil {
		return nil
	}
	out := make([]domain.Field, len(fields))
	for i, f := range fields {
		out[i] = cloneField(f)
	}
	return out
}

func cloneField(f domain.Field) domain.Field {
	f.Options = slices.Clone(f.Options)
	f.PrefillFields = slices.Clone(f.PrefillFields)
	f.SizeOptions = slices.Clone(f.SizeOptions)
	f.ShirtSizeOptions = slices.Clone(f.ShirtSizeOptions)
	f.PantsSizeOptions = slices.Clone(f.PantsSizeOptions)
	if f.Min != nil {
		v := *f.Min
		f.Min = &v
	}
	if f.Max != nil {
		v := *f.Max
		f.Max = &v
	}
	return f
}

package forms

import (
	"sort"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

// FieldsForPage returns the fields of a page sorted by Order ascending, ties
// broken by declaration order. Fields pinned by a page override come first in
// the listed order. Single-page templates answer page 1 with their flat fields.
func FieldsForPage(t *domain.FormTemplate, pageID int) []domain.Field {
	var fields []domain.Field
	if t.IsMultiPage() {
		for _, p := range t.Pages {
			if p.PageID == pageID {
				fields = append(fields, p.Fields...)
				break
			}
		}
	} else if pageID == 1 {
		fields = append(fields, t.Fields...)
	}
	if len(fields) == 0 {
		return nil
	}

	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})

	pins := pinnedFor(t, pageID)
	if len(pins) == 0 {
		return fields
	}

	out := make([]domain.Field, 0, len(fields))
	taken := make(map[string]bool, len(pins))
	for _, id := range pins {
		for _, f := range fields {
			if f.ID == id && !taken[id] {
				out = append(out, f)
				taken[id] = true
			}
		}
	}
	for _, f := range fields {
		if !taken[f.ID] {
			out = append(out, f)
		}
	}
	return out
}

func pinnedFor(t *domain.FormTemplate, pageID int) []string {
	for _, o := range t.PageOverrides {
		if o.PageID == pageID {
			return o.PinFirst
		}
	}
	return nil
}

// AllFields returns every field of the template in page order.
func AllFields(t *domain.FormTemplate) []domain.Field {
	if !t.IsMultiPage() {
		return append([]domain.Field(nil), t.Fields...)
	}
	var out []domain.Field
	for _, p := range t.Pages {
		out = append(out, p.Fields...)
	}
	return out
}

// PageIDs returns the page ids in traversal order.
func PageIDs(t *domain.FormTemplate) []int {
	if !t.IsMultiPage() {
		return []int{1}
	}
	ids := make([]int, 0, len(t.Pages))
	for _, p := range t.Pages {
		ids = append(ids, p.PageID)
	}
	return ids
}

// TotalPages returns the number of pages; single-page templates have one.
func TotalPages(t *domain.FormTemplate) int {
	if !t.IsMultiPage() {
		return 1
	}
	return len(t.Pages)
}

// PageOf returns the page holding fieldID, or 0 when absent.
func PageOf(t *domain.FormTemplate, fieldID string) int {
	if !t.IsMultiPage() {
		for _, f := range t.Fields {
			if f.ID == fieldID {
				return 1
			}
		}
		return 0
	}
	for _, p := range t.Pages {
		for _, f := range p.Fields {
			if f.ID == fieldID {
				return p.PageID
			}
		}
	}
	return 0
}

// FindField returns the field with fieldID.
func FindField(t *domain.FormTemplate, fieldID string) (domain.Field, bool) {
	for _, f := range AllFields(t) {
		if f.ID == fieldID {
			return f, true
		}
	}
	return domain.Field{}, false
}

// FieldsOfType returns all fields of the given type in page order.
func FieldsOfType(t *domain.FormTemplate, ft domain.FieldType) []domain.Field {
	var out []domain.Field
	for _, f := range AllFields(t) {
		if f.Type == ft {
			out = append(out, f)
		}
	}
	return out
}

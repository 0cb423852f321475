package engine

import (
	"context"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/forms"
)

// SelectSubmission selects a prior submission in a submission-dropdown.
// The selection prefills the dropdown's side-channel data and autofills
// linked fields. An empty id clears the selection and everything derived
// from it, including the dependent sub-team choice.
func (e *Engine) SelectSubmission(ctx context.Context, fieldID, submissionID string) (Outcome, error) {
	const op = "Engine.SelectSubmission"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitted {
		return Outcome{}, domain.Invalid(op, "This form has already been submitted.")
	}
	f, ok := e.field(fieldID)
	if !ok {
		return Outcome{}, domain.NotFound(op, "field", fieldID)
	}
	if f.Type != domain.FieldSubmissionDropdown {
		return Outcome{}, domain.Errorf(domain.EINVALID, op, "field %s of type %s is not a submission dropdown", f.ID, f.Type)
	}

	var rec *domain.SubmissionRecord
	if submissionID != "" {
		records, loaded := e.sources[f.ID]
		rec = findRecord(records, submissionID)
		if loaded && rec == nil {
			return Outcome{}, domain.NotFound(op, "submission", submissionID)
		}
	}

	prev := e.values.Get(f.ID).Text
	e.setValue(f.ID, domain.Value{Text: submissionID})
	touched := append([]string{f.ID}, e.applyAutofill(f, rec)...)

	if prev != submissionID {
		for _, dep := range forms.AllFields(e.tmpl) {
			if dep.Type == domain.FieldSubTeamSelector && dep.DependsOn == f.ID {
				delete(e.values, dep.ID)
				touched = append(touched, dep.ID)
			}
		}
	}

	e.afterChange(ctx, touched...)
	return Outcome{Page: e.currentPage}, nil
}

// applyAutofill copies prefill values and autofilled fields from rec. A nil
// rec removes them. It returns the ids of the fields it changed.
func (e *Engine) applyAutofill(dropdown domain.Field, rec *domain.SubmissionRecord) []string {
	for _, pf := range dropdown.PrefillFields {
		key := dropdown.ID + "_" + pf.SourceFieldID
		if rec == nil {
			delete(e.prefilled, key)
			continue
		}
		if val, ok := rec.Data[pf.SourceFieldID]; ok && val != nil {
			e.prefilled[key] = val
		} else {
			delete(e.prefilled, key)
		}
	}

	var touched []string
	for _, f := range forms.AllFields(e.tmpl) {
		if !f.AutofillFromSubmission || f.AutofillLinkedDropdownFieldID != dropdown.ID {
			continue
		}
		touched = append(touched, f.ID)
		if rec == nil {
			delete(e.values, f.ID)
			continue
		}
		v := domain.Value{Text: rec.String(f.AutofillSourceFieldID)}
		if f.Type == domain.FieldImageSelectLibrary {
			for _, s := range colorSuffixes {
				v.Colors = v.Colors.WithChannel(s, rec.String(domain.SubKey(f.AutofillSourceFieldID, s).String()))
			}
		}
		e.setValue(f.ID, v)
	}
	return touched
}

func findRecord(records []domain.SubmissionRecord, id string) *domain.SubmissionRecord {
	for i := range records {
		if records[i].ID == id {
			return &records[i]
		}
	}
	return nil
}

// teamDropdown returns the first submission-dropdown, which selects the
// team on player forms.
func (e *Engine) teamDropdown() (domain.Field, bool) {
	fields := forms.FieldsOfType(e.tmpl, domain.FieldSubmissionDropdown)
	if len(fields) == 0 {
		return domain.Field{}, false
	}
	return fields[0], true
}

// selectedRecord returns the submission chosen in a dropdown, if loaded.
func (e *Engine) selectedRecord(dropdownID string) *domain.SubmissionRecord {
	id := e.values.Get(dropdownID).Text
	if id == "" {
		return nil
	}
	return findRecord(e.sources[dropdownID], id)
}

func (e *Engine) sourceTemplate(dropdown domain.Field) *domain.FormTemplate {
	if e.deps.Templates == nil || dropdown.SourceFormID == 0 {
		return nil
	}
	t, err := e.deps.Templates.Get(dropdown.SourceFormID)
	if err != nil {
		return nil
	}
	return t
}

// =============================================================================
// Options
// =============================================================================

func (e *Engine) dropdownOptions(f domain.Field) []Option {
	records := e.sources[f.ID]
	out := make([]Option, 0, len(records))
	for _, rec := range records {
		label := rec.String(f.DisplayFieldID)
		if label == "" {
			label = rec.ID
		}
		out = append(out, Option{ID: rec.ID, Label: label})
	}
	return out
}

// subTeamOptions lists the age-group teams declared by the team selected in
// the selector's dropdown.
func (e *Engine) subTeamOptions(selector domain.Field) []domain.SubTeam {
	dropdown, ok := e.field(selector.DependsOn)
	if !ok {
		return nil
	}
	rec := e.selectedRecord(dropdown.ID)
	src := e.sourceTemplate(dropdown)
	if rec == nil || src == nil {
		return nil
	}

	var out []domain.SubTeam
	for _, ef := range forms.FieldsOfType(src, domain.FieldDynamicTeamEntries) {
		var entries []domain.TeamEntry
		raw, ok := rec.Data[ef.ID]
		if !ok || !decodeJSON(raw, &entries) {
			continue
		}
		for _, en := range entries {
			if en.TeamName == "" {
				continue
			}
			out = append(out, domain.SubTeam{TeamName: en.TeamName, Gender: en.Gender, AgeGroup: en.AgeGroup})
		}
	}
	return out
}

package engine

import (
	"strings"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/uniqueness"
)

const (
	alertPageIncomplete   = "Please fill in all required fields on this page before continuing."
	alertSubmitIncomplete = "Please fill in all required fields (including colors if applicable) before submitting."
	messageRequired       = "This field is required."
)

// missingFor returns the missing keys of a required field.
func (e *Engine) missingFor(f domain.Field) []domain.FieldKey {
	if !f.Required {
		return nil
	}
	return KindOf(f.Type).Missing(f, e.values)
}

func (e *Engine) missingIn(fields []domain.Field) []domain.FieldKey {
	var out []domain.FieldKey
	for _, f := range fields {
		out = append(out, e.missingFor(f)...)
	}
	return out
}

func requiredMessage(k domain.FieldKey) string {
	switch k.Suffix {
	case domain.SuffixPrimaryColor:
		return "Please choose a primary color."
	case domain.SuffixSecondaryColor:
		return "Please choose a secondary color."
	case domain.SuffixShirtSize:
		return "Please choose a shirt size."
	case domain.SuffixPantsSize:
		return "Please choose a pants size."
	case domain.SuffixSize:
		return "Please choose a size."
	}
	return messageRequired
}

// flagMissing marks every missing key and moves to the page of the first.
func (e *Engine) flagMissing(missing []domain.FieldKey, alert string) Outcome {
	keys := make([]string, len(missing))
	for i, k := range missing {
		e.errors[k] = requiredMessage(k)
		keys[i] = k.String()
	}
	first := missing[0]
	page := e.pageIndexOf(first.FieldID)
	if page != 0 {
		e.currentPage = page
	}
	return Outcome{
		Page:      e.currentPage,
		Missing:   keys,
		FocusPage: page,
		FocusKey:  first.String(),
		Alert:     alert,
	}
}

// fail records a check failure on key and moves to its page.
func (e *Engine) fail(key domain.FieldKey, err error) Outcome {
	msg := domain.ErrorMessage(err)
	e.errors[key] = msg
	page := e.pageIndexOf(key.FieldID)
	if page != 0 {
		e.currentPage = page
	}
	return Outcome{
		Page:      e.currentPage,
		FocusPage: page,
		FocusKey:  key.String(),
		Alert:     msg,
	}
}

// =============================================================================
// Cross-Submission Checks
// =============================================================================

// extraChecks runs the identity, color and jersey checks over fields. It
// stops at the first failure.
func (e *Engine) extraChecks(fields []domain.Field) (Outcome, bool) {
	const op = "Engine.Validate"

	team := e.tmpl.Kind == domain.FormKindTeamRegistration
	player := e.tmpl.Kind == domain.FormKindPlayerRegistration

	// Names are checked before emails.
	if team {
		for _, pass := range []bool{false, true} {
			for _, f := range fields {
				if !f.Unique || (f.Type == domain.FieldEmail) != pass {
					continue
				}
				text := strings.TrimSpace(e.values.Get(f.ID).Text)
				if text == "" {
					continue
				}
				var err error
				if f.Type == domain.FieldEmail {
					err = e.index.CheckEmail(op, text)
				} else {
					err = e.index.CheckName(op, text)
				}
				if err != nil {
					return e.fail(domain.Key(f.ID), err), true
				}
			}
		}
	}

	for _, f := range fields {
		if !f.HasColorPickers() {
			continue
		}
		colors := e.values.Get(f.ID).Colors
		for _, s := range colorSuffixes {
			if err := uniqueness.CheckColor(op, colors.Channel(s)); err != nil {
				return e.fail(domain.SubKey(f.ID, s), err), true
			}
		}
		if team && colors.Primary != "" && colors.Secondary != "" {
			if err := e.index.CheckColors(op, uniqueness.TripleFrom(colors)); err != nil {
				return e.fail(domain.Key(f.ID), err), true
			}
		}
	}

	if player {
		for _, f := range fields {
			if !f.JerseyNumber {
				continue
			}
			number := e.values.Get(f.ID).Text
			if strings.TrimSpace(number) == "" {
				continue
			}
			keys, candidate := e.jerseyInputs(f, number)
			if err := uniqueness.CheckJersey(op, candidate, e.prior, keys); err != nil {
				return e.fail(domain.Key(f.ID), err), true
			}
		}
	}
	return Outcome{}, false
}

// teamKeys locates the identity fields of a team template.
func (e *Engine) teamKeys() uniqueness.TeamKeys {
	var keys uniqueness.TeamKeys
	for _, f := range e.orderedFields() {
		switch {
		case f.Unique && f.Type == domain.FieldEmail && keys.EmailKey == "":
			keys.EmailKey = f.ID
		case f.Unique && f.Type != domain.FieldEmail && keys.NameKey == "":
			keys.NameKey = f.ID
		case f.HasColorPickers() && keys.ColorFieldID == "":
			keys.ColorFieldID = f.ID
		}
	}
	return keys
}

func (e *Engine) jerseyInputs(jersey domain.Field, number string) (uniqueness.PlayerKeys, uniqueness.JerseyCandidate) {
	keys := uniqueness.PlayerKeys{NumberKey: jersey.ID}
	c := uniqueness.JerseyCandidate{Number: number}
	if dd, ok := e.teamDropdown(); ok {
		keys.TeamKey = dd.ID
		c.TeamID = e.values.Get(dd.ID).Text
	}
	for _, f := range e.orderedFields() {
		if f.Type == domain.FieldSubTeamSelector {
			keys.SubTeamKey = f.ID
			c.SubTeam = e.values.Get(f.ID).SubTeam
			break
		}
	}
	return keys, c
}

// needsPrior reports whether the checks need this template's own prior
// submissions.
func (e *Engine) needsPrior() bool {
	for _, f := range e.orderedFields() {
		if f.Unique || f.JerseyNumber {
			return true
		}
		if f.HasColorPickers() && e.tmpl.Kind == domain.FormKindTeamRegistration {
			return true
		}
	}
	return false
}

func (e *Engine) setPrior(records []domain.SubmissionRecord) {
	e.prior = records
	if e.tmpl.Kind == domain.FormKindTeamRegistration {
		e.index = uniqueness.BuildIndex(records, e.teamKeys())
	}
}

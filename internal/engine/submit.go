package engine

import (
	"context"
	"time"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/media"
)

const (
	alertSubmitFailed     = "We couldn't submit your registration. Please check your connection and try again."
	alertSubmitInProgress = "Your registration is already being submitted."
)

// =============================================================================
// Navigation
// =============================================================================

// NextPage validates the current page and advances. On the last page it
// submits instead.
func (e *Engine) NextPage(ctx context.Context) (Outcome, error) {
	const op = "Engine.NextPage"

	e.mu.Lock()
	if e.submitted {
		e.mu.Unlock()
		return Outcome{}, domain.Invalid(op, "This form has already been submitted.")
	}

	fields := e.pageFields(e.currentPage)
	if missing := e.missingIn(fields); len(missing) > 0 {
		out := e.flagMissing(missing, alertPageIncomplete)
		e.mu.Unlock()
		return out, nil
	}
	if out, failed := e.extraChecks(fields); failed {
		e.mu.Unlock()
		return out, nil
	}

	if e.currentPage >= e.totalPages() {
		e.mu.Unlock()
		return e.Submit(ctx)
	}

	e.currentPage++
	e.reconcileKit(ctx)
	e.saveDraft(ctx)
	out := Outcome{Advanced: true, Page: e.currentPage}
	e.mu.Unlock()
	return out, nil
}

// PrevPage moves back one page without validating.
func (e *Engine) PrevPage(ctx context.Context) (Outcome, error) {
	const op = "Engine.PrevPage"

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitted {
		return Outcome{}, domain.Invalid(op, "This form has already been submitted.")
	}
	if e.currentPage > 1 {
		e.currentPage--
		e.saveDraft(ctx)
	}
	return Outcome{Page: e.currentPage}, nil
}

// =============================================================================
// Submission
// =============================================================================

// Submit validates every page and sends the submission exactly once. A
// failed send keeps the respondent editing with the draft intact.
func (e *Engine) Submit(ctx context.Context) (Outcome, error) {
	const op = "Engine.Submit"

	e.mu.Lock()
	if e.submitted {
		e.mu.Unlock()
		return Outcome{}, domain.Invalid(op, "This form has already been submitted.")
	}
	if e.submitting {
		e.mu.Unlock()
		return Outcome{Page: e.currentPage, Alert: alertSubmitInProgress}, nil
	}
	if missing := e.missingIn(e.orderedFields()); len(missing) > 0 {
		out := e.flagMissing(missing, alertSubmitIncomplete)
		e.mu.Unlock()
		return out, nil
	}
	e.submitting = true
	refresh := e.needsPrior() && e.deps.Collab != nil
	e.mu.Unlock()

	// Other registrations may have landed since the form was opened.
	if refresh {
		records, err := e.deps.Collab.Submissions(ctx, e.tmpl.ID)
		e.mu.Lock()
		if err != nil {
			e.logger.Warn("failed to refresh prior submissions, using cached", "op", op, "error", err)
		} else {
			e.setPrior(records)
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	if out, failed := e.extraChecks(e.orderedFields()); failed {
		e.submitting = false
		e.mu.Unlock()
		return out, nil
	}
	payload := e.submitPayload()
	e.mu.Unlock()

	if e.deps.Media != nil {
		if n := media.RecompressPayload(e.deps.Media, payload, e.logger); n > 0 {
			e.logger.Debug("recompressed images", "count", n)
		}
	}

	start := time.Now()
	var res *domain.SubmissionResult
	var err error = domain.Unavailable(nil, op, "no submission backend configured")
	if e.deps.Collab != nil {
		res, err = e.deps.Collab.CreateSubmission(ctx, e.tmpl.ID, payload)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false

	if err != nil {
		e.logger.Error("submission failed", "op", op, "duration", time.Since(start), "error", err)
		return Outcome{Page: e.currentPage, Alert: alertSubmitFailed}, domain.Unavailable(err, op, alertSubmitFailed)
	}

	e.summary = e.buildSummary()
	e.submitted = true
	e.errors = make(map[domain.FieldKey]string)
	if e.deps.Drafts != nil {
		e.deps.Drafts.Clear(ctx, e.tmpl.ID)
	}
	e.logger.Info("form submitted",
		"submission_id", res.Submission.ID,
		"duration", time.Since(start),
	)
	return Outcome{Submitted: true, Page: e.currentPage, TeamProfile: res.TeamProfile}, nil
}

// buildSummary lists the answered fields in page order, skipping internal
// types.
func (e *Engine) buildSummary() []SummaryItem {
	var out []SummaryItem
	for _, f := range e.orderedFields() {
		v, ok := e.values[f.ID]
		if !ok {
			continue
		}
		text, ok := KindOf(f.Type).Summarize(f, v)
		if !ok || text == "" {
			continue
		}
		if f.Type == domain.FieldSubmissionDropdown {
			for _, o := range e.dropdownOptions(f) {
				if o.ID == v.Text {
					text = o.Label
					break
				}
			}
		}
		out = append(out, SummaryItem{FieldID: f.ID, Label: f.Label, Value: text})
	}
	return out
}

// Summary returns the post-submission summary.
func (e *Engine) Summary() []SummaryItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SummaryItem(nil), e.summary...)
}

// Reset starts a fresh response: values, prefilled data and flags are
// cleared and the first page is shown. The cart is left alone.
func (e *Engine) Reset(ctx context.Context) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.values = make(Values)
	e.prefilled = make(map[string]any)
	e.errors = make(map[domain.FieldKey]string)
	e.summary = nil
	e.submitted = false
	e.currentPage = 1
	e.applyDefaults()
	if e.deps.Drafts != nil {
		e.deps.Drafts.Clear(ctx, e.tmpl.ID)
	}
	return Outcome{Page: e.currentPage}
}

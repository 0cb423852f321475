package metrics

import (
	"strconv"
	"time"
)

// Action results.
const (
	ResultOK      = "ok"
	ResultBlocked = "blocked"
	ResultError   = "error"
)

// SessionOpened records a new engine for formID.
func SessionOpened(formID int, restored bool) {
	SessionsActive.Inc()
	SessionsOpened.WithLabelValues(strconv.Itoa(formID), strconv.FormatBool(restored)).Inc()
}

// SessionClosed records an engine leaving memory.
func SessionClosed() {
	SessionsActive.Dec()
}

// SessionLoaded records how long the initial fetches took.
func SessionLoaded(formID int, d time.Duration) {
	SessionLoadDuration.WithLabelValues(strconv.Itoa(formID)).Observe(d.Seconds())
}

// ActionRecorded counts an engine action. An alert without an error means the
// action was blocked by validation.
func ActionRecorded(action string, alert string, err error) {
	result := ResultOK
	switch {
	case err != nil:
		result = ResultError
	case alert != "":
		result = ResultBlocked
	}
	FormActionsTotal.WithLabelValues(action, result).Inc()
}

// SubmissionCompleted records a submission attempt that reached the backend.
func SubmissionCompleted(formID int, d time.Duration, err error) {
	status := "accepted"
	if err != nil {
		status = "failed"
	}
	id := strconv.Itoa(formID)
	SubmissionsTotal.WithLabelValues(id, status).Inc()
	SubmissionDuration.WithLabelValues(id).Observe(d.Seconds())
}

// CartMutation counts a cart change by operation name.
func CartMutation(operation string) {
	CartMutationsTotal.WithLabelValues(operation).Inc()
}

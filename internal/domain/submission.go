package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SubmissionRecord is a previously submitted form, read-only to the engine.
// Data uses the external flat key shape ("1", "23_primaryColor", ...).
type SubmissionRecord struct {
	ID     string         `json:"id"`
	FormID int            `json:"formId,omitempty"`
	Data   map[string]any `json:"data"`
}

// UnmarshalJSON accepts numeric or string ids from collaborators.
func (r *SubmissionRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		FormID int             `json:"formId"`
		Data   map[string]any  `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.ID = strings.Trim(string(raw.ID), `"`)
	r.FormID = raw.FormID
	r.Data = raw.Data
	return nil
}

// String returns the value at key rendered as a string, or "" if absent.
func (r SubmissionRecord) String(key string) string {
	return AnyToString(r.Data[key])
}

// Number returns the numeric value at key. Numeric strings are parsed.
func (r SubmissionRecord) Number(key string) (float64, bool) {
	return AnyToFloat(r.Data[key])
}

// AnyToString renders scalar JSON values as strings.
func AnyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// AnyToFloat parses numbers and numeric strings.
func AnyToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// TeamProfile carries one-time credentials returned for team registrations.
type TeamProfile struct {
	TeamName string `json:"teamName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SubmissionResult is the collaborator response to a creation request.
type SubmissionResult struct {
	Submission  SubmissionRecord `json:"submission"`
	TeamProfile *TeamProfile     `json:"teamProfile,omitempty"`
}

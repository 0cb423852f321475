// Package draft persists in-progress form answers between visits.
//
// A draft is stored under "formDraft_{formId}" as
// {"formData": ..., "prefilledData": ..., "currentPage": N}. Saving drops
// oversized inline data URIs and excluded keys; restoring never fails.
package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/DukeRupert/leaguekit/internal/storage"
)

// MaxInlineChars is the largest data URI kept in a persisted draft.
const MaxInlineChars = 50000

// Key returns the storage key for a form's draft.
func Key(formID int) string {
	return fmt.Sprintf("formDraft_%d", formID)
}

// Snapshot is the persisted form state in the external flat shape.
type Snapshot struct {
	FormData      map[string]any `json:"formData"`
	PrefilledData map[string]any `json:"prefilledData"`
	CurrentPage   int            `json:"currentPage"`
}

// Store saves and restores drafts.
type Store struct {
	storage  storage.Storage
	maxChars int
	logger   *slog.Logger

	mu   sync.Mutex
	last map[int][]byte
}

// New creates a draft store over st.
func New(st storage.Storage, logger *slog.Logger) *Store {
	return &Store{
		storage:  st,
		maxChars: MaxInlineChars,
		logger:   logger,
		last:     make(map[int][]byte),
	}
}

// Save sanitizes and writes snap. Keys in exclude (for example password
// fields) are never persisted. Identical consecutive snapshots are not
// rewritten. Failures are logged only.
func (s *Store) Save(ctx context.Context, formID int, snap Snapshot, exclude map[string]bool) {
	const op = "Draft.Save"

	clean := Snapshot{
		FormData:      s.sanitizeMap(snap.FormData, exclude),
		PrefilledData: s.sanitizeMap(snap.PrefilledData, nil),
		CurrentPage:   snap.CurrentPage,
	}
	if clean.CurrentPage < 1 {
		clean.CurrentPage = 1
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		s.logger.Error("failed to encode draft", "op", op, "form_id", formID, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.last[formID]; ok && bytes.Equal(prev, raw) {
		return
	}
	if err := s.storage.Set(ctx, Key(formID), raw); err != nil {
		s.logger.Warn("failed to persist draft", "op", op, "form_id", formID, "error", err)
		return
	}
	s.last[formID] = raw
}

// Restore loads the draft for formID. It returns false when no usable draft
// exists; malformed data is logged and ignored.
func (s *Store) Restore(ctx context.Context, formID int) (Snapshot, bool) {
	const op = "Draft.Restore"

	raw, err := s.storage.Get(ctx, Key(formID))
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Warn("failed to load draft", "op", op, "form_id", formID, "error", err)
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("ignoring malformed draft", "op", op, "form_id", formID, "error", err)
		return Snapshot{}, false
	}
	if snap.FormData == nil {
		snap.FormData = map[string]any{}
	}
	if snap.PrefilledData == nil {
		snap.PrefilledData = map[string]any{}
	}
	if snap.CurrentPage < 1 {
		snap.CurrentPage = 1
	}

	s.mu.Lock()
	s.last[formID] = raw
	s.mu.Unlock()

	return snap, true
}

// Clear deletes the draft after a successful submission.
func (s *Store) Clear(ctx context.Context, formID int) {
	s.mu.Lock()
	delete(s.last, formID)
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, Key(formID)); err != nil {
		s.logger.Warn("failed to clear draft", "op", "Draft.Clear", "form_id", formID, "error", err)
	}
}

// =============================================================================
// Sanitization
// =============================================================================

// IsOversizedDataURI reports whether v is an inline data URI longer than max.
func IsOversizedDataURI(v string, max int) bool {
	return len(v) > max && strings.HasPrefix(v, "data:")
}

func (s *Store) sanitizeMap(in map[string]any, exclude map[string]bool) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if exclude[k] {
			continue
		}
		if clean, keep := s.sanitize(v); keep {
			out[k] = clean
		}
	}
	return out
}

func (s *Store) sanitize(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		if IsOversizedDataURI(t, s.maxChars) {
			return nil, false
		}
		return t, true
	case map[string]any:
		return s.sanitizeMap(t, nil), true
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if clean, keep := s.sanitize(item); keep {
				out = append(out, clean)
			}
		}
		return out, true
	}
	return v, true
}

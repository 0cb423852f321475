package draft

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/leaguekit/internal/storage"
)

func newDraftStore(t *testing.T) (*Store, *storage.MemoryStorage, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mem := storage.NewMemoryStorage()
	return New(mem, slog.New(slog.NewTextHandler(&buf, nil))), mem, &buf
}

func TestKey(t *testing.T) {
	assert.Equal(t, "formDraft_2", Key(2))
}

func TestRoundTrip(t *testing.T) {
	s, _, _ := newDraftStore(t)
	ctx := context.Background()

	bigURI := "data:image/png;base64," + strings.Repeat("A", MaxInlineChars)
	smallURI := "data:image/png;base64,AAAA"

	s.Save(ctx, 1, Snapshot{
		FormData: map[string]any{
			"1":               "Lions",
			"22":              bigURI,
			"30":              smallURI,
			"23_primaryColor": "#DC2626",
			"33":              []any{map[string]any{"teamName": "Lions U13", "logo": bigURI}},
		},
		PrefilledData: map[string]any{"8_2": "Jane"},
		CurrentPage:   2,
	}, nil)

	fresh := New(s.storage, s.logger)
	got, ok := fresh.Restore(ctx, 1)
	require.True(t, ok)

	assert.Equal(t, 2, got.CurrentPage)
	assert.Equal(t, "Lions", got.FormData["1"])
	assert.Equal(t, smallURI, got.FormData["30"])
	assert.Equal(t, "#DC2626", got.FormData["23_primaryColor"])
	assert.NotContains(t, got.FormData, "22", "oversized data URI must not be persisted")
	assert.Equal(t, []any{map[string]any{"teamName": "Lions U13"}}, got.FormData["33"], "nested oversized values are dropped")
	assert.Equal(t, "Jane", got.PrefilledData["8_2"])
}

func TestSave_LongPlainStringKept(t *testing.T) {
	s, _, _ := newDraftStore(t)
	ctx := context.Background()

	long := strings.Repeat("x", MaxInlineChars+10)
	s.Save(ctx, 4, Snapshot{FormData: map[string]any{"21": long}, CurrentPage: 1}, nil)

	got, ok := s.Restore(ctx, 4)
	require.True(t, ok)
	assert.Equal(t, long, got.FormData["21"], "only data URIs are filtered")
}

func TestSave_ExcludesKeys(t *testing.T) {
	s, mem, _ := newDraftStore(t)
	ctx := context.Background()

	s.Save(ctx, 2, Snapshot{
		FormData:    map[string]any{"37": "Jane", "39": "hunter2"},
		CurrentPage: 1,
	}, map[string]bool{"39": true})

	raw, err := mem.Get(ctx, Key(2))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
}

func TestSave_SkipsIdenticalRewrite(t *testing.T) {
	ctx := context.Background()
	counting := &countingStorage{Storage: storage.NewMemoryStorage()}
	s := New(counting, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	snap := Snapshot{FormData: map[string]any{"1": "Lions"}, CurrentPage: 1}
	s.Save(ctx, 1, snap, nil)
	s.Save(ctx, 1, snap, nil)
	assert.Equal(t, 1, counting.sets)

	snap.CurrentPage = 2
	s.Save(ctx, 1, snap, nil)
	assert.Equal(t, 2, counting.sets)
}

func TestRestore_Malformed(t *testing.T) {
	s, mem, buf := newDraftStore(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, Key(1), []byte(`{"formData": [1,2`)))

	got, ok := s.Restore(ctx, 1)
	assert.False(t, ok)
	assert.Empty(t, got.FormData)
	assert.Contains(t, buf.String(), "ignoring malformed draft")
}

func TestRestore_Missing(t *testing.T) {
	s, _, buf := newDraftStore(t)

	_, ok := s.Restore(context.Background(), 7)
	assert.False(t, ok)
	assert.Empty(t, buf.String(), "a missing draft is not worth a log line")
}

func TestSave_StorageFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	s := New(failingStorage{}, slog.New(slog.NewTextHandler(&buf, nil)))

	s.Save(context.Background(), 1, Snapshot{FormData: map[string]any{"1": "x"}, CurrentPage: 1}, nil)
	assert.Contains(t, buf.String(), "failed to persist draft")
}

func TestClear(t *testing.T) {
	s, mem, _ := newDraftStore(t)
	ctx := context.Background()

	s.Save(ctx, 1, Snapshot{FormData: map[string]any{"1": "Lions"}, CurrentPage: 3}, nil)
	s.Clear(ctx, 1)

	_, err := mem.Get(ctx, Key(1))
	assert.True(t, storage.IsNotFound(err))
	_, ok := s.Restore(ctx, 1)
	assert.False(t, ok)
}

type countingStorage struct {
	storage.Storage
	sets int
}

func (c *countingStorage) Set(ctx context.Context, key string, value []byte) error {
	c.sets++
	return c.Storage.Set(ctx, key, value)
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) ([]byte, error) { return nil, errors.New("quota") }
func (failingStorage) Set(context.Context, string, []byte) error   { return errors.New("quota") }
func (failingStorage) Delete(context.Context, string) error        { return errors.New("quota") }

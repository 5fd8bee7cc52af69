package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "data", "queue.json"), zerolog.Nop())
}

func TestLoadMissingCreatesEmptyQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Created)
	assert.Empty(t, snap.Queue.BookingRequests)
	assert.Empty(t, snap.Queue.ProcessedRequests)

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookingRequests":[],"processedRequests":[]}`, string(b))

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, again.Created)
}

func TestLoadMalformedFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"bookingRequests": [`), 0o644))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse queue")
}

func TestLoadNullEntryFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"bookingRequests":[null],"processedRequests":[]}`), 0o644))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse queue")
	assert.Contains(t, err.Error(), "bookingRequests[0] is null")
}

func TestSaveRoundTripKeepsUnknownFields(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	doc := `{
  "bookingRequests": [
    {"id": "r1", "requestDate": "2026-10-01T10:00:00.000Z", "playDate": "2026-10-15",
     "timeRange": {"start": "09:00", "end": "11:00"}, "status": "pending", "requestedBy": "web", "cart": "yes"}
  ],
  "processedRequests": [],
  "schemaNote": "v2"
}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o644))

	ctx := context.Background()
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, snap))

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "v2", got["schemaNote"])
	req := got["bookingRequests"].([]any)[0].(map[string]any)
	assert.Equal(t, "yes", req["cart"])
	assert.Equal(t, "2026-10-01T10:00:00.000Z", req["requestDate"])
}

func TestSaveDetectsConcurrentEdit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)

	other := NewStore(s.Path(), zerolog.Nop())
	req, err := NewRequest(Submission{PlayDate: "2026-11-01", Start: "08:00", End: "09:00"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, other.Add(ctx, req))

	err = s.Save(ctx, snap)
	assert.ErrorIs(t, err, ErrConflict)

	fresh, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, fresh.Queue.BookingRequests, 1)
	require.NoError(t, s.Save(ctx, fresh))
	require.NoError(t, s.Save(ctx, fresh), "saving twice from the same snapshot is allowed")
}

func TestAddAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	req, err := NewRequest(Submission{PlayDate: "2026-11-14", Start: "09:00", End: "11:00", RequestedBy: "ann"}, now)
	require.NoError(t, err)
	assert.Regexp(t, `^20261015-[0-9a-f]{8}$`, req.ID)
	assert.Equal(t, booking.StatusPending, req.Status)

	require.NoError(t, s.Add(ctx, req))
	assert.ErrorIs(t, s.Add(ctx, req), ErrDuplicate)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Queue.BookingRequests, 1)

	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	require.NoError(t, s.Delete(ctx, req.ID))

	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Queue.BookingRequests)
}

func TestDeleteRejectsResolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	snap.Queue.ProcessedRequests = []*booking.Request{{ID: "done", Status: booking.StatusSuccess}}
	require.NoError(t, s.Save(ctx, snap))

	assert.ErrorIs(t, s.Delete(ctx, "done"), ErrNotPending)
}

func TestNewRequestValidation(t *testing.T) {
	now := time.Now()
	_, err := NewRequest(Submission{PlayDate: "11/14/2026", Start: "09:00", End: "10:00"}, now)
	assert.Error(t, err)
	_, err = NewRequest(Submission{PlayDate: "2026-11-14", Start: "9", End: "10"}, now)
	assert.Error(t, err)
	_, err = NewRequest(Submission{PlayDate: "2026-11-14", Start: "10:00", End: "09:00"}, now)
	assert.Error(t, err)
}

package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/example/teetime-scheduler/internal/domain/booking"
)

var (
	ErrConflict   = errors.New("queue document changed since it was loaded")
	ErrNotFound   = errors.New("request not found")
	ErrNotPending = errors.New("request is no longer pending")
	ErrDuplicate  = errors.New("request id already queued")
)

// Store persists the queue document as one JSON file. It is not transactional: callers own a
// whole load -> mutate -> save cycle, and Save refuses to overwrite a file that changed meanwhile.
type Store struct {
	path string
	log  zerolog.Logger
}

// Snapshot is a loaded document plus the version it was read at.
type Snapshot struct {
	Queue *booking.Queue
	// Created is set when the document did not exist and an empty one was written.
	Created bool

	version [blake2b.Size256]byte
}

func (s *Snapshot) Version() string { return fmt.Sprintf("%x", s.version[:8]) }

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log.With().Str("component", "queue").Str("path", path).Logger()}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		snap := &Snapshot{Queue: &booking.Queue{}, Created: true}
		b, err := encode(snap.Queue)
		if err != nil {
			return nil, err
		}
		if err := s.write(b); err != nil {
			return nil, fmt.Errorf("create empty queue: %w", err)
		}
		snap.version = blake2b.Sum256(b)
		s.log.Info().Msg("queue file missing, created empty queue")
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}

	var q booking.Queue
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("parse queue %s: %w", s.path, err)
	}
	s.log.Debug().Int("pending", len(q.BookingRequests)).Int("processed", len(q.ProcessedRequests)).Msg("queue loaded")
	return &Snapshot{Queue: &q, version: blake2b.Sum256(b)}, nil
}

// Save writes the complete document atomically (temp file + rename).
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read queue: %w", err)
	}
	if err != nil || blake2b.Sum256(current) != snap.version {
		return fmt.Errorf("save %s: %w", s.path, ErrConflict)
	}

	b, err := encode(snap.Queue)
	if err != nil {
		return err
	}
	if err := s.write(b); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	snap.version = blake2b.Sum256(b)
	s.log.Debug().Str("version", snap.Version()).Msg("queue saved")
	return nil
}

// Add appends a pending request to the queue document.
func (s *Store) Add(ctx context.Context, req *booking.Request) error {
	snap, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if found, _ := snap.Queue.Find(req.ID); found != nil {
		return fmt.Errorf("%s: %w", req.ID, ErrDuplicate)
	}
	snap.Queue.BookingRequests = append(snap.Queue.BookingRequests, req)
	return s.Save(ctx, snap)
}

// Delete removes a request by id while it is still pending.
func (s *Store) Delete(ctx context.Context, id string) error {
	snap, err := s.Load(ctx)
	if err != nil {
		return err
	}
	found, pending := snap.Queue.Find(id)
	switch {
	case found == nil:
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	case !pending || found.Status != booking.StatusPending:
		return fmt.Errorf("%s: %w", id, ErrNotPending)
	}
	kept := snap.Queue.BookingRequests[:0]
	for _, r := range snap.Queue.BookingRequests {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	snap.Queue.BookingRequests = kept
	return s.Save(ctx, snap)
}

func (s *Store) write(b []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func encode(q *booking.Queue) ([]byte, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

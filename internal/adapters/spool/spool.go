// Package spool persists undelivered batches to local storage so they
// survive process death, including crashes.
//
// Each batch lives in its own file keyed by batch id. Writes go to a temp
// file first and are renamed into place, so a reader sees either the old
// complete content or the new complete content, never a torn write.
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// File layout constants.
const (
	entrySuffix = ".batch.json"
	tempSuffix  = ".tmp"
	dirMode     = 0o700
	fileMode    = 0o600
)

// Spool stores batches durably until delivery is confirmed.
type Spool interface {
	// Persist writes the batch, atomically replacing any previous
	// unconfirmed write for the same batch id. It must complete before
	// returning; the crash path relies on that.
	Persist(ctx context.Context, b *model.Batch) error

	// ReadAll returns every persisted, undelivered batch in creation
	// order. A missing or corrupt store yields an empty result, never an
	// error: a broken spool must not take the host app down.
	ReadAll(ctx context.Context) []*model.Batch

	// Delete removes a confirmed-delivered batch. Deleting a missing
	// entry is not an error.
	Delete(ctx context.Context, batchID string) error

	// Size returns the number of spooled batches.
	Size(ctx context.Context) int
}

// FileSpool implements Spool on a local directory.
type FileSpool struct {
	dir    string
	mu     sync.Mutex
	sync   bool
	logger logger.Logger
}

// NewFileSpool creates a spool rooted at dir, creating it if needed.
func NewFileSpool(dir string, opts ...Option) (*FileSpool, error) {
	s := &FileSpool{
		dir:  dir,
		sync: true,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("spool")
	}

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create spool dir %s: %w", dir, err)
	}
	return s, nil
}

// Persist writes the batch to its slot via temp-then-rename.
func (s *FileSpool) Persist(ctx context.Context, b *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(b)
	if err != nil {
		metrics.RecordSpoolError()
		return fmt.Errorf("marshal batch %s: %w", b.BatchID, err)
	}

	final := s.entryPath(b.BatchID)
	tmp := final + tempSuffix

	if err := s.writeFile(tmp, data); err != nil {
		metrics.RecordSpoolError()
		return fmt.Errorf("write spool entry %s: %w", b.BatchID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		metrics.RecordSpoolError()
		return fmt.Errorf("commit spool entry %s: %w", b.BatchID, err)
	}

	metrics.RecordSpoolPersisted()
	metrics.UpdateSpoolSize(s.countLocked())
	return nil
}

// ReadAll loads every entry, skipping anything unreadable or corrupt.
func (s *FileSpool) ReadAll(ctx context.Context) []*model.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn(ctx, "spool unreadable, treating as empty", logger.Error(err))
			metrics.RecordSpoolError()
		}
		return nil
	}

	var batches []*model.Batch
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), entrySuffix) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable spool entry",
				logger.String("entry", entry.Name()), logger.Error(err))
			metrics.RecordSpoolError()
			continue
		}
		var b model.Batch
		if err := json.Unmarshal(data, &b); err != nil {
			s.logger.Warn(ctx, "skipping corrupt spool entry",
				logger.String("entry", entry.Name()), logger.Error(err))
			metrics.RecordSpoolError()
			continue
		}
		batches = append(batches, &b)
	}

	// Creation order within a run; cross-run ordering is best effort.
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})

	metrics.UpdateSpoolSize(len(batches))
	return batches
}

// Delete removes the entry for batchID if present.
func (s *FileSpool) Delete(ctx context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.entryPath(batchID))
	if err != nil && !os.IsNotExist(err) {
		metrics.RecordSpoolError()
		return fmt.Errorf("delete spool entry %s: %w", batchID, err)
	}
	metrics.RecordSpoolDeleted()
	metrics.UpdateSpoolSize(s.countLocked())
	return nil
}

// Size returns the number of spooled batches.
func (s *FileSpool) Size(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

// entryPath returns the file path for a batch id.
func (s *FileSpool) entryPath(batchID string) string {
	return filepath.Join(s.dir, batchID+entrySuffix)
}

// countLocked counts entries on disk. Caller must hold s.mu.
func (s *FileSpool) countLocked() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), entrySuffix) {
			n++
		}
	}
	return n
}

// writeFile writes data and, unless disabled, fsyncs before closing so the
// entry survives power loss as well as process death.
func (s *FileSpool) writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	if s.sync {
		if err := f.Sync(); err != nil {
			f.Close()
			_ = os.Remove(path)
			return err
		}
	}
	return f.Close()
}

// Package runlock keeps scheduled runs from overlapping. The lock is a small
// JSON record claimed with an exclusive create and released only by its owner.
package runlock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/fsutil"
	"github.com/pders01/guide-sync/internal/logger"
)

var (
	// ErrHeld means another live run owns the lock
	ErrHeld = errors.New("run lock held")
	// ErrNotOwner means the lock file now belongs to someone else
	ErrNotOwner = errors.New("run lock not owned")
)

// Record is the persisted lock state
type Record struct {
	Owner       string    `json:"owner"`
	PID         int       `json:"pid"`
	Host        string    `json:"host"`
	StartedAt   time.Time `json:"started_at"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
}

// ParseRecord reads a lock file. A bare decimal pid from older runs is accepted.
func ParseRecord(data []byte) (Record, error) {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "{") {
		var r Record
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return Record{}, fmt.Errorf("invalid lock record: %w", err)
		}
		return r, nil
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return Record{}, fmt.Errorf("invalid lock record %q", s)
	}
	return Record{PID: pid}, nil
}

// Lock is one process's handle on the lock file
type Lock struct {
	Path       string
	StaleAfter time.Duration

	// Now and Alive are replaceable for tests
	Now   func() time.Time
	Alive func(pid int) bool

	fs     afero.Fs
	log    *logger.Logger
	record Record
	held   bool
}

func New(fs afero.Fs, cfg config.Lock, log *logger.Logger) *Lock {
	if log == nil {
		log = logger.Nop()
	}
	return &Lock{
		Path:       cfg.Path,
		StaleAfter: cfg.StaleAfter,
		Now:        time.Now,
		Alive:      processAlive,
		fs:         fs,
		log:        log,
	}
}

// Owner is the token written by Acquire
func (l *Lock) Owner() string {
	return l.record.Owner
}

// Active reports whether r still guards a run: its process is alive and its
// heartbeat, when present, is younger than StaleAfter
func (l *Lock) Active(r Record) bool {
	if r.PID <= 0 || !l.Alive(r.PID) {
		return false
	}
	if r.HeartbeatAt.IsZero() || l.StaleAfter <= 0 {
		return true
	}
	return l.Now().Sub(r.HeartbeatAt) < l.StaleAfter
}

// claimGrace is how long an empty lock file is taken to be a claim still
// being written
const claimGrace = 10 * time.Second

// Acquire claims the lock. A live holder yields ErrHeld; a stale one is
// logged, moved aside and the claim retried once.
func (l *Lock) Acquire() error {
	if err := l.fs.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	err := l.create()
	if !errors.Is(err, os.ErrExist) {
		return err
	}

	data, readErr := afero.ReadFile(l.fs, l.Path)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return fmt.Errorf("failed to read lock: %w", readErr)
	}
	if readErr == nil {
		if len(bytes.TrimSpace(data)) == 0 && l.claimInProgress() {
			return fmt.Errorf("%w: claim in progress", ErrHeld)
		}
		existing, parseErr := ParseRecord(data)
		if parseErr == nil && l.Active(existing) {
			return fmt.Errorf("%w by pid %d on %s since %s", ErrHeld, existing.PID, existing.Host, existing.StartedAt.Format(time.RFC3339))
		}
		l.log.Warn("removing stale run lock", "pid", existing.PID, "host", existing.Host, "heartbeat_at", existing.HeartbeatAt, "error", parseErr)
		if err := l.discard(data); err != nil {
			return err
		}
	}

	if err := l.create(); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: claimed concurrently", ErrHeld)
		}
		return err
	}
	return nil
}

func (l *Lock) claimInProgress() bool {
	info, err := l.fs.Stat(l.Path)
	return err == nil && time.Since(info.ModTime()) < claimGrace
}

// discard moves the stale lock aside and deletes it, but only if the moved
// file still holds the record judged stale. Anything else is a newer claim
// and goes back in place.
func (l *Lock) discard(stale []byte) error {
	aside := l.Path + ".stale-" + uuid.NewString()
	if err := l.fs.Rename(l.Path, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to move stale lock: %w", err)
	}

	moved, err := afero.ReadFile(l.fs, aside)
	if err != nil || !bytes.Equal(moved, stale) {
		if restoreErr := l.fs.Rename(aside, l.Path); restoreErr != nil {
			l.log.Error("failed to restore run lock", "path", aside, "error", restoreErr)
		}
		return fmt.Errorf("%w: claimed concurrently", ErrHeld)
	}
	if err := l.fs.Remove(aside); err != nil {
		l.log.Warn("failed to remove stale lock", "path", aside, "error", err)
	}
	return nil
}

func (l *Lock) create() error {
	f, err := l.fs.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	host, _ := os.Hostname()
	now := l.Now().UTC()
	rec := Record{
		Owner:       uuid.NewString(),
		PID:         os.Getpid(),
		Host:        host,
		StartedAt:   now,
		HeartbeatAt: now,
	}
	data, err := json.Marshal(rec)
	if err == nil {
		_, err = f.Write(data)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = l.fs.Remove(l.Path)
		return fmt.Errorf("failed to write lock: %w", err)
	}

	l.record = rec
	l.held = true
	l.log.Debug("run lock acquired", "path", l.Path, "owner", rec.Owner)
	return nil
}

// current checks that the file on disk still carries our owner token
func (l *Lock) current() error {
	if !l.held {
		return ErrNotOwner
	}
	data, err := afero.ReadFile(l.fs, l.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotOwner, err)
	}
	rec, err := ParseRecord(data)
	if err != nil || rec.Owner != l.record.Owner {
		return ErrNotOwner
	}
	return nil
}

// Heartbeat refreshes the liveness timestamp
func (l *Lock) Heartbeat() error {
	if err := l.current(); err != nil {
		return err
	}
	rec := l.record
	rec.HeartbeatAt = l.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(l.fs, l.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	l.record = rec
	return nil
}

// Release removes the lock file if this handle still owns it
func (l *Lock) Release() error {
	if err := l.current(); err != nil {
		return err
	}
	l.held = false
	if err := l.fs.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock: %w", err)
	}
	l.log.Debug("run lock released", "path", l.Path)
	return nil
}

// Describe writes the lock file state for status output
func Describe(w io.Writer, fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		_, err = fmt.Fprintln(w, "lock: free")
		return err
	}
	if err != nil {
		return err
	}
	rec, err := ParseRecord(data)
	if err != nil {
		_, err = fmt.Fprintf(w, "lock: unreadable (%v)\n", err)
		return err
	}
	_, err = fmt.Fprintf(w, "lock: pid %d on %s, heartbeat %s\n", rec.PID, rec.Host, rec.HeartbeatAt.Format(time.RFC3339))
	return err
}

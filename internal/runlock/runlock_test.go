package runlock

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/pders01/guide-sync/internal/config"
)

const lockPath = "storage/generate-json.lock"

var t0 = time.Date(2026, 5, 29, 6, 0, 0, 0, time.UTC)

func newLock(fs afero.Fs, alive bool) *Lock {
	l := New(fs, config.Lock{Path: lockPath, StaleAfter: 2 * time.Hour}, nil)
	l.Now = func() time.Time { return t0 }
	l.Alive = func(int) bool { return alive }
	return l
}

func TestAcquireAndRelease(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := newLock(fs, true)

	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := afero.ReadFile(fs, lockPath)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := ParseRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Owner == "" || rec.Owner != l.Owner() || rec.PID != os.Getpid() || !rec.HeartbeatAt.Equal(t0) {
		t.Errorf("unexpected record %+v", rec)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if ok, _ := afero.Exists(fs, lockPath); ok {
		t.Error("lock file should be removed")
	}
	if err := l.Release(); !errors.Is(err, ErrNotOwner) {
		t.Errorf("second release should fail with ErrNotOwner, got %v", err)
	}
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	fs := afero.NewMemMapFs()
	first := newLock(fs, true)
	if err := first.Acquire(); err != nil {
		t.Fatal(err)
	}

	second := newLock(fs, true)
	if err := second.Acquire(); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if err := second.Release(); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner release should fail, got %v", err)
	}
	if ok, _ := afero.Exists(fs, lockPath); !ok {
		t.Error("non-owner must not remove the lock")
	}
}

func TestAcquireReplacesStaleLock(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		alive    bool
		now      time.Time
	}{
		{name: "dead pid", contents: `{"owner":"x","pid":4242,"heartbeat_at":"2026-05-29T05:59:00Z"}`, alive: false, now: t0},
		{name: "expired heartbeat", contents: `{"owner":"x","pid":4242,"heartbeat_at":"2026-05-29T03:00:00Z"}`, alive: true, now: t0},
		{name: "legacy dead pid", contents: "4242\n", alive: false, now: t0},
		{name: "garbage", contents: "not a lock", alive: true, now: t0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			_ = afero.WriteFile(fs, lockPath, []byte(tt.contents), 0644)
			l := newLock(fs, tt.alive)
			l.Now = func() time.Time { return tt.now }

			if err := l.Acquire(); err != nil {
				t.Fatalf("expected stale lock to be replaced, got %v", err)
			}
			data, _ := afero.ReadFile(fs, lockPath)
			if !strings.Contains(string(data), l.Owner()) {
				t.Errorf("lock not rewritten: %s", data)
			}
		})
	}
}

func TestEmptyLockFile(t *testing.T) {
	t.Run("fresh claim is held", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_ = afero.WriteFile(fs, lockPath, nil, 0644)

		if err := newLock(fs, false).Acquire(); !errors.Is(err, ErrHeld) {
			t.Errorf("expected ErrHeld while the claim is written, got %v", err)
		}
	})

	t.Run("abandoned claim is replaced", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_ = afero.WriteFile(fs, lockPath, nil, 0644)
		old := time.Now().Add(-time.Minute)
		_ = fs.Chtimes(lockPath, old, old)

		l := newLock(fs, false)
		if err := l.Acquire(); err != nil {
			t.Fatalf("expected abandoned claim to be replaced, got %v", err)
		}
		data, _ := afero.ReadFile(fs, lockPath)
		if !strings.Contains(string(data), l.Owner()) {
			t.Errorf("lock not rewritten: %s", data)
		}
	})
}

// racingFs lets another process claim the lock right before the stale
// record is moved aside
type racingFs struct {
	afero.Fs
	claimed bool
}

func (r *racingFs) Rename(oldname, newname string) error {
	if oldname == lockPath && !r.claimed {
		r.claimed = true
		_ = r.Fs.Remove(lockPath)
		_ = afero.WriteFile(r.Fs, lockPath, []byte(`{"owner":"winner","pid":7}`), 0644)
	}
	return r.Fs.Rename(oldname, newname)
}

func TestStaleTakeoverKeepsConcurrentClaim(t *testing.T) {
	fs := &racingFs{Fs: afero.NewMemMapFs()}
	_ = afero.WriteFile(fs, lockPath, []byte(`{"owner":"x","pid":4242}`), 0644)

	l := newLock(fs, false)
	if err := l.Acquire(); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld after losing the race, got %v", err)
	}

	data, err := afero.ReadFile(fs, lockPath)
	if err != nil {
		t.Fatalf("concurrent claim was removed: %v", err)
	}
	rec, _ := ParseRecord(data)
	if rec.Owner != "winner" {
		t.Errorf("expected the winner's record, got %s", data)
	}
	entries, _ := afero.ReadDir(fs, "storage")
	if len(entries) != 1 {
		t.Errorf("expected only the lock file, got %d entries", len(entries))
	}
}

func TestLegacyLiveLockIsHeld(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, lockPath, []byte("4242"), 0644)

	if err := newLock(fs, true).Acquire(); !errors.Is(err, ErrHeld) {
		t.Errorf("expected ErrHeld for a live legacy pid, got %v", err)
	}
}

func TestHeartbeat(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := newLock(fs, true)
	if err := l.Acquire(); err != nil {
		t.Fatal(err)
	}

	later := t0.Add(90 * time.Minute)
	l.Now = func() time.Time { return later }
	if err := l.Heartbeat(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := afero.ReadFile(fs, lockPath)
	rec, _ := ParseRecord(data)
	if !rec.HeartbeatAt.Equal(later) || !rec.StartedAt.Equal(t0) {
		t.Errorf("unexpected record after heartbeat %+v", rec)
	}

	// a fresh heartbeat keeps the lock active past the original start
	other := newLock(fs, true)
	other.Now = func() time.Time { return t0.Add(3 * time.Hour) }
	if !other.Active(rec) {
		t.Error("expected refreshed lock to be active")
	}

	_ = afero.WriteFile(fs, lockPath, []byte(`{"owner":"someone-else","pid":1}`), 0644)
	if err := l.Heartbeat(); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner after takeover, got %v", err)
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord([]byte(" 1234\n"))
	if err != nil || rec.PID != 1234 || rec.Owner != "" {
		t.Errorf("unexpected legacy parse %+v, %v", rec, err)
	}
	if _, err := ParseRecord([]byte("{broken")); err == nil {
		t.Error("expected error for broken json")
	}
	if _, err := ParseRecord(nil); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestProcessAliveSelf(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("own process should be alive")
	}
}

func TestDescribe(t *testing.T) {
	fs := afero.NewMemMapFs()
	var b strings.Builder
	if err := Describe(&b, fs, lockPath); err != nil || b.String() != "lock: free\n" {
		t.Errorf("unexpected output %q, %v", b.String(), err)
	}
}

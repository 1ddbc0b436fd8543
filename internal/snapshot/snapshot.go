// Package snapshot reads and writes the published JSON documents.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/pders01/guide-sync/internal/fsutil"
	"github.com/pders01/guide-sync/internal/models"
)

// ErrMissing is returned when a snapshot has never been written
var ErrMissing = errors.New("snapshot not found")

// Encode renders v as indented JSON with non-ASCII and markup left literal
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes v and replaces path atomically. It returns the bytes written.
func Write(afs afero.Fs, path string, v any) (int, error) {
	data, err := Encode(v)
	if err != nil {
		return 0, err
	}
	if err := fsutil.WriteFileAtomic(afs, path, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return len(data), nil
}

// Read decodes the document at path
func Read[T any](afs afero.Fs, path string) (*T, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &doc, nil
}

func ReadSessions(afs afero.Fs, path string) (*models.SessionsDocument, error) {
	return Read[models.SessionsDocument](afs, path)
}

func ReadExhibitors(afs afero.Fs, path string) (*models.ExhibitorsDocument, error) {
	return Read[models.ExhibitorsDocument](afs, path)
}

func ReadExperts(afs afero.Fs, path string) (*models.ExpertsDocument, error) {
	return Read[models.ExpertsDocument](afs, path)
}

func ReadStandplan(afs afero.Fs, path string) (*models.StandplanDocument, error) {
	return Read[models.StandplanDocument](afs, path)
}

// Package artifact stores image artifacts produced by agent runs on local disk.
package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/file-analysis/pkg/metrics"
)

// ErrNotFound is returned for names that do not resolve to a stored artifact.
var ErrNotFound = errors.New("artifact not found")

const (
	tempPrefix  = ".artifact-"
	ownerPrefix = "t-"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Store writes artifacts into a single directory.
type Store struct {
	dir string
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a name derived from fileID plus a fresh UUID, so two
// saves of the same file never collide. The file appears atomically. A
// non-empty owner places the file in a directory only that owner resolves.
func (s *Store) Save(owner, fileID string, data []byte) (string, error) {
	dir := s.ownerDir(owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s%s", sanitize(fileID), uuid.Must(uuid.NewV7()).String(), extensionFor(data))
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}

	metrics.ArtifactsSavedTotal.Inc()
	return path, nil
}

// Remove deletes an artifact returned by Save. Paths outside the store are
// refused; a missing file is not an error.
func (s *Store) Remove(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("artifact %s is outside the store", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}

// Resolve maps a bare artifact name saved for owner to its path. Names with
// path separators or a leading dot are rejected.
func (s *Store) Resolve(owner, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrNotFound
	}

	path := filepath.Join(s.ownerDir(owner), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// ownerDir is the store root for an empty owner and a hex-named
// subdirectory otherwise, so distinct owners never share a directory.
func (s *Store) ownerDir(owner string) string {
	if owner == "" {
		return s.dir
	}
	return filepath.Join(s.dir, ownerPrefix+hex.EncodeToString([]byte(owner)))
}

// Sweep removes artifacts last modified before now-maxAge, in the root and
// every owner directory, and returns how many were removed.
func (s *Store) Sweep(now time.Time, maxAge time.Duration) (int, error) {
	cutoff := now.Add(-maxAge)
	removed := 0
	var errs []error

	err := filepath.WalkDir(s.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == s.dir {
				return err
			}
			errs = append(errs, err)
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	metrics.ArtifactsRemovedTotal.Add(float64(removed))
	return removed, errors.Join(errs...)
}

func sanitize(fileID string) string {
	clean := unsafeChars.ReplaceAllString(fileID, "_")
	if clean == "" {
		return "image"
	}
	return clean
}

func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

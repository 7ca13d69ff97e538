// Package cache keeps rendered markdown on disk so a post body is only run
// through the renderer again after it changes.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"inkwell/common"
)

// Store is a directory of rendered fragments. A nil Store caches nothing.
type Store struct {
	dir string
}

// New returns nil when dir is empty, which disables caching.
func New(dir string) *Store {
	if dir == "" {
		return nil
	}
	return &Store{dir: dir}
}

// Path returns the cache file for a version of a post. The version is part of
// the hash, so an edited post never reads a stale fragment.
func (s *Store) Path(slug string, version time.Time) string {
	hash := generateHash(slug + "@" + version.UTC().Format(time.RFC3339Nano))
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.html", slug, hash[:16]))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// Read returns the cached fragment, if present.
func (s *Store) Read(slug string, version time.Time) (string, bool) {
	if s == nil {
		return "", false
	}
	content, err := os.ReadFile(s.Path(slug, version))
	if err != nil {
		return "", false
	}
	return string(content), true
}

// Write stores a fragment, replacing older versions of the same post.
func (s *Store) Write(slug string, version time.Time, html string) error {
	if s == nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	if err := s.Clear(slug); err != nil {
		return err
	}
	return os.WriteFile(s.Path(slug, version), []byte(html), 0644)
}

// Rendered returns the cached fragment or renders, stores and returns it.
// Cache failures are logged and never fail the page.
func (s *Store) Rendered(slug string, version time.Time, render func() string) string {
	if html, ok := s.Read(slug, version); ok {
		return html
	}
	html := render()
	if err := s.Write(slug, version, html); err != nil {
		common.Log.WithError(err).WithField("slug", slug).Warn("failed to write render cache")
	}
	return html
}

// Clear removes every cached version of a post.
func (s *Store) Clear(slug string) error {
	if s == nil {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, slug+"_*.html"))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ClearOld removes fragments not written for maxAge.
func (s *Store) ClearOld(maxAge time.Duration) error {
	if s == nil {
		return nil
	}
	return filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}
		return nil
	})
}

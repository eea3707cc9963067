// Package auth guards the local API with optional bearer tokens read from a
// token file. Without a configured token file the API is open to any local
// client; with one, only listed tokens pass, and an empty or missing file
// lets nothing through.
package auth

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Service holds the accepted tokens and reloads them when the file changes.
type Service struct {
	mu      sync.RWMutex
	path    string
	tokens  []string
	watcher *fsnotify.Watcher
}

// NewService loads tokens from path and watches it for changes. An empty
// path gives an open service with no watcher.
func NewService(path string) (*Service, error) {
	s := &Service{path: path}
	if path == "" {
		return s, nil
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		return s, nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		slog.Warn("auth: could not watch token dir", "err", err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher

	go s.watchLoop(filepath.Clean(path))
	return s, nil
}

// Reload re-reads the token file. A missing or empty file clears all
// tokens, which denies every request.
func (s *Service) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("auth: token file missing, denying all requests", "path", s.path)
			s.set(nil)
			return nil
		}
		return err
	}
	tokens := parseTokens(data)
	if len(tokens) == 0 {
		slog.Warn("auth: token file has no tokens, denying all requests", "path", s.path)
	}
	s.set(tokens)
	slog.Debug("auth: reloaded tokens", "count", len(tokens))
	return nil
}

func (s *Service) set(tokens []string) {
	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
}

// parseTokens reads one token per line, skipping blanks and # comments.
func parseTokens(data []byte) []string {
	var tokens []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens
}

// IsOpenMode returns true when no token file is configured.
func (s *Service) IsOpenMode() bool {
	return s.path == ""
}

// VerifyKey reports whether key is one of the configured tokens.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok := false
	for _, t := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(key), []byte(t)) == 1 {
			ok = true
		}
	}
	return ok
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Service) watchLoop(path string) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := s.Reload(); err != nil {
					slog.Warn("auth: failed to reload tokens", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}

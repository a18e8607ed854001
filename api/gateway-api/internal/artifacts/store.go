// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.

package internal_artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sohriai/gateway/pkg/commons"
)

// Store keeps the encoded-utterance scratch files the recognition API is fed
// from. Layout: <base>/YYYY-MM-DD/<sessionId>/<utteranceId>.<ext>. Files are
// unlinked once the recognition response arrives; PurgeSession removes
// whatever is left when the session is cleaned up.
type Store struct {
	logger  commons.Logger
	baseDir string
	clock   func() time.Time
}

func NewStore(logger commons.Logger, baseDir string) *Store {
	return &Store{logger: logger, baseDir: baseDir, clock: time.Now}
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, s.clock().Format("2006-01-02"), sessionID)
}

// Write persists one encoded utterance and returns its path.
func (s *Store) Write(sessionID, utteranceID, ext string, data []byte) (string, error) {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, utteranceID+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: failed to write %s: %w", path, err)
	}
	return path, nil
}

// Remove unlinks one artifact. Missing files are not an error.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warnw("artifacts: failed to remove file", "path", path, "error", err)
	}
}

// PurgeSession removes the session's scratch directory for today.
func (s *Store) PurgeSession(sessionID string) {
	dir := s.sessionDir(sessionID)
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warnw("artifacts: failed to purge session dir", "dir", dir, "error", err)
	}
}

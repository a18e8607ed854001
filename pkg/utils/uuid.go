// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.
package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh canonical UUID string.
func NewSessionID() string {
	return uuid.New().String()
}

// SessionIDBytes decodes a canonical UUID string into its 16 raw bytes,
// the form used on the endpoint-detector wire.
func SessionIDBytes(sessionID string) ([]byte, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	return id[:], nil
}

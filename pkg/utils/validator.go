// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.
package utils

import "strings"

// IsEmpty reports whether s contains nothing but whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

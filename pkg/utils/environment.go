// Copyright (c) 2024-2026 SohriAI
//
// Licensed under GPL-2.0 with Sohri Additional Terms.
// See LICENSE.md for commercial usage.
package utils

import "strings"

type SohriEnvironment string

const (
	PRODUCTION  SohriEnvironment = "production"
	DEVELOPMENT SohriEnvironment = "development"
)

func (e SohriEnvironment) Get() string {
	return string(e)
}

func (e SohriEnvironment) IsProduction() bool {
	return e == PRODUCTION
}

// FromEnvironmentStr maps an environment string to a known environment,
// defaulting to development for anything unrecognised.
func FromEnvironmentStr(s string) SohriEnvironment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production":
		return PRODUCTION
	default:
		return DEVELOPMENT
	}
}

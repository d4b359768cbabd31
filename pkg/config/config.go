package config

import "github.com/deenly/progress-core/pkg/domain"

// Catalog represents the static challenge and achievement catalog loaded from catalog.json.
// It is parsed from JSON and validated during application startup, and never mutated afterwards.
type Catalog struct {
	Challenges   []*domain.Challenge   `json:"challenges"`
	Achievements []*domain.Achievement `json:"achievements"`
}

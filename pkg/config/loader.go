package config

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/deenly/progress-core/pkg/domain"
	progresserrors "github.com/deenly/progress-core/pkg/errors"
)

//go:embed default_catalog.json
var defaultCatalog []byte

// CatalogLoader loads and validates the challenge/achievement catalog from a JSON file.
// An empty path selects the catalog embedded in the binary.
type CatalogLoader struct {
	catalogPath string
	validator   *Validator
	logger      *slog.Logger
}

// NewCatalogLoader creates a new CatalogLoader instance.
//
// Parameters:
//   - catalogPath: Path to catalog.json, or "" for the embedded default
//   - logger: Structured logger for operational logging
func NewCatalogLoader(catalogPath string, logger *slog.Logger) *CatalogLoader {
	return &CatalogLoader{
		catalogPath: catalogPath,
		validator:   NewValidator(),
		logger:      logger,
	}
}

// LoadCatalog reads, parses, defaults and validates the catalog.
//
// This is a "fail fast" operation: an invalid catalog prevents startup, because
// every achievement must have a predicate and every challenge a bound metric.
func (l *CatalogLoader) LoadCatalog() (*Catalog, error) {
	// Step 1: Read file
	data, err := l.read()
	if err != nil {
		return nil, progresserrors.ErrConfigNotFound(l.catalogPath, err)
	}

	// Step 2: Parse JSON
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, progresserrors.ErrConfigInvalid("failed to parse catalog JSON", err)
	}

	// Step 3: Defaults. Achievements with no points grant the standard reward.
	for _, achievement := range catalog.Achievements {
		if achievement != nil && achievement.Points == 0 {
			achievement.Points = domain.DefaultAchievementPoints
		}
	}

	// Step 4: Validate
	if err := l.validator.Validate(&catalog); err != nil {
		return nil, progresserrors.ErrConfigInvalid("catalog validation failed", err)
	}

	source := l.catalogPath
	if source == "" {
		source = "embedded"
	}
	l.logger.Info("Catalog loaded successfully",
		"challenges", len(catalog.Challenges),
		"achievements", len(catalog.Achievements),
		"catalog_path", source,
	)

	return &catalog, nil
}

func (l *CatalogLoader) read() ([]byte, error) {
	if l.catalogPath == "" {
		return defaultCatalog, nil
	}
	return os.ReadFile(l.catalogPath)
}

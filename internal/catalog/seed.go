// internal/catalog/seed.go
//
// Startup seeding of an empty catalog.
//
// Source selection (LoadSeed):
//   1. If a path is given (DESTINATIONS_FILE), read destinations from it.
//   2. Otherwise fall back to the embedded default catalog in assets.
//
// Both sources are a JSON array of Input objects.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/globetrotter/assets"
)

// LoadSeed reads seed destinations from path, or the embedded defaults when
// path is empty.
func LoadSeed(path string) ([]Input, error) {
	raw := assets.Destinations()
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		raw, source = b, path
	}

	var out []Input
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s destinations: %w", source, err)
	}
	log.Debug().Str("source", source).Int("count", len(out)).Msg("seed destinations loaded")
	return out, nil
}

// Seed bulk-imports inputs when the catalog is empty. It reports whether
// anything was imported.
func (s *Service) Seed(ctx context.Context, inputs []Input) (bool, error) {
	n, err := s.store.Destinations().Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count destinations: %w", err)
	}
	if n > 0 || len(inputs) == 0 {
		return false, nil
	}
	res, err := s.BulkCreate(ctx, inputs)
	if err != nil {
		return false, err
	}
	log.Info().Int("created", res.Created).Int("failed", res.Failed).Msg("catalog seeded")
	return res.Created > 0, nil
}

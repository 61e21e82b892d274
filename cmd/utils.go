package cmd

import (
	"fmt"

	"github.com/modseek/modseek/pkg/config"
	"github.com/modseek/modseek/pkg/store"
)

// openStore loads the configuration and opens the migrated configuration
// store. Callers own the returned store and must close it.
func openStore(configPath string) (*config.Config, *store.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	if err := s.SetDefaultPrefix(cfg.DefaultPrefix); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close store: %v\n", closeErr)
		}
		return nil, nil, fmt.Errorf("applying default prefix: %w", err)
	}

	if err := s.Migrate(); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close store: %v\n", closeErr)
		}
		return nil, nil, fmt.Errorf("applying migrations: %w", err)
	}

	return cfg, s, nil
}

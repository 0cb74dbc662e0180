package server

import (
	"fmt"

	"github.com/oarkflow/sprite/pkg/cache"
	"github.com/oarkflow/sprite/pkg/config"
	"github.com/oarkflow/sprite/pkg/history"
)

// NewFromConfig wires the program cache and run history described by cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	store, err := history.Open(cfg.History.File, 1000)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	base := []Option{WithHistory(store)}
	if cfg.Cache.Enabled {
		pc, err := cache.New(cfg.Cache.MaxPrograms)
		if err != nil {
			return nil, fmt.Errorf("create program cache: %w", err)
		}
		base = append(base, WithProgramCache(pc))
	}
	return NewServer(Config{
		Version: cfg.Server.Version,
		Runtime: cfg.RuntimeConfig(),
		Globals: cfg.Globals,
	}, append(base, opts...)...), nil
}

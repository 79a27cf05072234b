package config

import (
	"fmt"

	"github.com/spf13/viper"

	"fenrir/internal/types"
)

// Catalog is the seed token/market set loaded at startup. The registry's
// periodic refresh from the real external catalog service is out of
// scope here — this engine binary, like the REST front-end and DB-writer,
// treats that catalog service as an external collaborator and only needs
// a concrete way to seed and reseed its own in-memory registry; a file
// watcher or admin RPC that re-calls registry.Refresh at runtime is a
// natural extension point, not built here.
type Catalog struct {
	Tokens  []types.Token  `mapstructure:"tokens"`
	Markets []types.Market `mapstructure:"markets"`
}

// LoadCatalog reads a YAML catalog file in the same viper-based style as
// Load.
func LoadCatalog(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cat Catalog
	if err := v.Unmarshal(&cat); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return &cat, nil
}

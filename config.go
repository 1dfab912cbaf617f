package siteguard

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config is the site-side CLI configuration.
type Config struct {
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Site        SiteConfig        `toml:"site"`
}

type CoordinatorConfig struct {
	URL             string `toml:"url"`
	TLSVerification bool   `toml:"tls_verification"`
}

// SiteConfig identifies the site as a participant. Token is sent as the
// bearer principal.
type SiteConfig struct {
	Token string `toml:"token"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

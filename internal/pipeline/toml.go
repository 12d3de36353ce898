package pipeline

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// LoadConfigFile reads a pipeline Config from a TOML file at path.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "pipeline: load config %s", path)
	}
	return cfg, nil
}

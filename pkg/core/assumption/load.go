package assumption

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"dcf_valuation/pkg/core/utils"
)

// Load reads a config file, applies defaults and validates it.
// The format is chosen by extension: .yaml/.yml, .hjson, or .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes config bytes in the format named by ext.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, cfg)
	case ".hjson":
		err = utils.ParseHJSONToStruct(data, cfg)
	case ".json":
		err = utils.DecodeLenientJSON(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

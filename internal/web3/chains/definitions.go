package chains

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions models the structure of configs/chains.yaml.
type Definitions struct {
	Chains map[string]Override `yaml:"chains"`
}

// LoadDefinitions parses the YAML file containing chain overrides. An empty
// path yields no overrides.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{Chains: map[string]Override{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]Override{}
	}
	return defs, nil
}

// Load builds the registry used at runtime: the built-in catalog, then the
// definitions file, then per-chain RPC endpoint overrides.
func Load(path string, rpcOverrides map[string]string) (*Registry, error) {
	defs, err := LoadDefinitions(path)
	if err != nil {
		return nil, err
	}
	builtin, err := Default()
	if err != nil {
		return nil, err
	}
	registry, err := builtin.WithOverrides(defs.Chains)
	if err != nil {
		return nil, err
	}
	if len(rpcOverrides) == 0 {
		return registry, nil
	}
	endpoints := make(map[string]Override, len(rpcOverrides))
	for name, url := range rpcOverrides {
		endpoints[name] = Override{RPCURL: url}
	}
	return registry.WithOverrides(endpoints)
}

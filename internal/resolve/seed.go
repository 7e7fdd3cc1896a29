package resolve

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of the curated label-to-code mapping.
type seedFile struct {
	Mappings map[string]string `yaml:"mappings"`
}

// LoadSeedMapping reads a YAML file mapping raw report labels to canonical
// metric codes. Keys are normalized the same way resolution inputs are, so
// lookups are case and whitespace insensitive.
func LoadSeedMapping(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed mapping: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed mapping: %w", err)
	}
	out := make(map[string]string, len(f.Mappings))
	for label, code := range f.Mappings {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		out[NormalizeLabel(label)] = code
	}
	return out, nil
}

package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML loads a YAML preset and applies it on top of the defaults.
// Unknown keys are rejected.
func LoadYAML(path string) (*Preset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var f File
	dec := yaml.NewDecoder(fh)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return build(path, &f)
}

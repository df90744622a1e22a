package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
)

// factorsFile is the YAML structure of an optional piece-factor override
// file. Missing entries fall back to the plant defaults.
//
//	default: 3
//	press2: 6
//	lines:
//	  3: 2
//	  4: 4
type factorsFile struct {
	Default int         `yaml:"default"`
	Press2  int         `yaml:"press2"`
	Lines   map[int]int `yaml:"lines"`
}

// LoadPressFactors reads the factor file at path, overlaying the built-in
// table. An empty path or a missing file yields the defaults.
func LoadPressFactors(path string) (domain.PressFactors, error) {
	factors := domain.DefaultPressFactors()
	if path == "" {
		return factors, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return factors, nil
		}
		return factors, fmt.Errorf("failed to read factors file: %w", err)
	}

	var f factorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return factors, fmt.Errorf("failed to parse factors file: %w", err)
	}

	if f.Default > 0 {
		factors.Default = f.Default
	}
	if f.Press2 > 0 {
		factors.Press2 = f.Press2
	}
	for line, v := range f.Lines {
		factors.Lines[line] = v
	}

	if err := factors.Validate(); err != nil {
		return factors, err
	}
	return factors, nil
}

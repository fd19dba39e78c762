package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"gopkg.in/yaml.v3"
)

// readDefinition loads a policy definition from a JSON or YAML file. A file
// with a .yaml or .yml extension is decoded as YAML, anything else as JSON.
func readDefinition(path string) (corepolicy.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	d, err := corepolicy.ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}

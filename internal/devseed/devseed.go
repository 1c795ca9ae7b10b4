// Package devseed loads seed files used to pre-populate mock Till stores.
package devseed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is a single key/value pair to load into a mock store. Lifespan is
// optional; an empty value means the store's default lifespan.
type Entry struct {
	Key      string `yaml:"key"`
	Value    string `yaml:"value"`
	Lifespan string `yaml:"lifespan,omitempty"`
}

// Load reads a YAML seed file. JSON is accepted since it parses as YAML.
// The document is either a list of entries or a mapping of key to value.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes seed entries from raw YAML or JSON.
func Parse(data []byte) ([]Entry, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("devseed: parse: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	var entries []Entry
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("devseed: decode entries: %w", err)
		}
	case yaml.MappingNode:
		// Mapping form keeps file order so later duplicates win predictably.
		for i := 0; i+1 < len(root.Content); i += 2 {
			var key, value string
			if err := root.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("devseed: decode key: %w", err)
			}
			if err := root.Content[i+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("devseed: decode value for %q: %w", key, err)
			}
			entries = append(entries, Entry{Key: key, Value: value})
		}
	default:
		return nil, fmt.Errorf("devseed: unsupported document kind %d", root.Kind)
	}

	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return nil, fmt.Errorf("devseed: entry %d missing key", i)
		}
	}
	return entries, nil
}

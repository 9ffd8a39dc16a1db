package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"api-test-engine/internal/types"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateEndpoint is returned when two endpoints share an id
var ErrDuplicateEndpoint = errors.New("duplicate endpoint id")

// Catalog is the on-disk list of endpoint definitions
type Catalog struct {
	Endpoints []types.Endpoint `json:"endpoints" yaml:"endpoints"`
}

// Load reads a catalog file. Files ending in .json are parsed as JSON,
// everything else as YAML. Every endpoint is validated.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if isJSON(path) {
		err = json.Unmarshal(data, &c)
	} else {
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		ep.Method = strings.ToUpper(ep.Method)
		normalizeNumbers(ep)
		if err := ep.Validate(); err != nil {
			return nil, err
		}
		if seen[ep.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, ep.ID)
		}
		seen[ep.ID] = true
	}
	return &c, nil
}

// Save writes the catalog in the format implied by the file extension
func Save(path string, c *Catalog) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// Find returns the endpoint with the given id
func (c *Catalog) Find(id string) (types.Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return types.Endpoint{}, false
}

// Remove drops the endpoint with the given id, reporting whether it existed
func (c *Catalog) Remove(id string) bool {
	for i, ep := range c.Endpoints {
		if ep.ID == id {
			c.Endpoints = append(c.Endpoints[:i], c.Endpoints[i+1:]...)
			return true
		}
	}
	return false
}

// Merge adds endpoints, replacing existing ones with the same id
func (c *Catalog) Merge(endpoints []types.Endpoint) (added, replaced int) {
	index := make(map[string]int, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		index[ep.ID] = i
	}
	for _, ep := range endpoints {
		if i, ok := index[ep.ID]; ok {
			c.Endpoints[i] = ep
			replaced++
			continue
		}
		index[ep.ID] = len(c.Endpoints)
		c.Endpoints = append(c.Endpoints, ep)
		added++
	}
	return added, replaced
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// normalizeNumbers makes YAML integers and JSON floats compare alike
// when they become request values.
func normalizeNumbers(ep *types.Endpoint) {
	for i := range ep.Parameters {
		p := &ep.Parameters[i]
		p.Default = normalize(p.Default)
		p.Example = normalize(p.Example)
	}
}

func normalize(v any) any {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return int(n)
		}
	case int64:
		return int(n)
	case uint64:
		return int(n)
	}
	return v
}

package blueprint

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "schema://blueprint.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func fileSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("parse blueprint schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add blueprint schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

type fileFormat struct {
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

// Parse validates data against the blueprint schema and decodes it.
func Parse(data []byte) (Table, error) {
	schema, err := fileSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("blueprint validation failed: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}

	seen := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	return Table(f.Categories), nil
}

// LoadFile reads an override table from path. An empty path returns the
// default table.
func LoadFile(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("blueprint %s: %w", path, err)
	}
	return t, nil
}

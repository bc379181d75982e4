package template

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed schema/template.schema.json
var templateSchemaJSON []byte

const templateSchemaURL = "https://sheetcast.local/schema/template.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(templateSchemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("parse template schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(templateSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add template schema: %w", err)
	}
	return compiler.Compile(templateSchemaURL)
})

// document is the normalized form of a template file.
type document struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Attributes  []struct {
		Key  string `json:"key"`
		Type any    `json:"type"`
	} `json:"attributes"`
}

// Load reads a YAML template document from r. The document is validated
// against the embedded JSON schema before any attribute is built.
func Load(r io.Reader) (*Template, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidTemplate)
		}
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidTemplate, err)
	}
	if raw == nil {
		raw = make(map[string]any)
	}

	// Round-trip through JSON so the validator and the declaration builder
	// see JSON types only.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize document: %w", ErrInvalidTemplate, err)
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("%w: normalize document: %w", ErrInvalidTemplate, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(normalized); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	decls := make([]Declaration, len(doc.Attributes))
	for i, a := range doc.Attributes {
		decls[i] = Declaration{Key: a.Key, Type: a.Type}
	}
	t, err := New(doc.Name, decls)
	if err != nil {
		return nil, err
	}
	t.description = doc.Description
	return t, nil
}

// LoadFile loads a template file. A template without a name takes the file
// name, without extension.
func LoadFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.name == "" {
		t.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// LoadDir loads every .yaml and .yml file of dir into a new Registry.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
		default:
			continue
		}

		t, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

package client

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Shapes the runner relies on. Each schema only pins the fields that are
// read afterwards; anything else the backend adds is ignored.
const (
	schemaUser           = "user.json"
	schemaClassification = "classification.json"
	schemaTruck          = "truck.json"
	schemaStats          = "stats.json"
	schemaList           = "list.json"
	schemaHealth         = "health.json"
)

const schemaBase = "mem://ecosort/schemas/"

type schemaSet map[string]*jsonschema.Schema

func loadSchemas() (schemaSet, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}
	set := make(schemaSet, len(entries))
	for _, e := range entries {
		s, err := c.Compile(schemaBase + e.Name())
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", e.Name(), err)
		}
		set[e.Name()] = s
	}
	return set, nil
}

// validate checks body against the named schema. Bodies that are not JSON
// at all fail here too, before typed decoding is attempted.
func (s schemaSet) validate(name string, body []byte) error {
	sch, ok := s[name]
	if !ok {
		return fmt.Errorf("unknown schema %s", name)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return sch.Validate(doc)
}

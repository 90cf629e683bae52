// Package schema validates request bodies against embedded JSON schemas,
// one per call surface method plus the websocket request frame.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var files embed.FS

// Request is the schema name of a websocket frame.
const Request = "request"

var (
	once     sync.Once
	compiled map[string]*jsonschema.Schema
	loadErr  error
)

func load() {
	entries, err := files.ReadDir("schemas")
	if err != nil {
		loadErr = err
		return
	}

	compiler := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		b, err := files.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			loadErr = err
			return
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if err := compiler.AddResource(url(name), bytes.NewReader(b)); err != nil {
			loadErr = fmt.Errorf("add schema %s: %w", name, err)
			return
		}
		names = append(names, name)
	}

	compiled = make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := compiler.Compile(url(name))
		if err != nil {
			loadErr = fmt.Errorf("compile schema %s: %w", name, err)
			return
		}
		compiled[name] = s
	}
}

func url(name string) string {
	return "mem://schemas/" + name + ".json"
}

// Has reports whether a schema exists for name.
func Has(name string) bool {
	once.Do(load)
	_, ok := compiled[name]
	return ok
}

// Validate checks a JSON document against the named schema. An empty body
// is treated as {}.
func Validate(name string, data []byte) error {
	once.Do(load)
	if loadErr != nil {
		return loadErr
	}
	s, ok := compiled[name]
	if !ok {
		return fmt.Errorf("no schema for %q", name)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return s.Validate(instance)
}

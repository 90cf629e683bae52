package model

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Catalog is the set of language tags that resolve to a model.
type Catalog struct {
	def   Identifier
	tags  []Identifier
	index map[string]Identifier
}

type catalogFile struct {
	Default   string   `yaml:"default"`
	Languages []string `yaml:"languages"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read catalog")
	}
	return ParseCatalog(b)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "can't parse catalog")
	}
	if len(f.Languages) == 0 {
		return nil, errors.New("catalog has no languages")
	}

	c := &Catalog{index: make(map[string]Identifier, len(f.Languages))}
	for _, l := range f.Languages {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, ok := c.index[key]; ok {
			continue
		}
		c.index[key] = Identifier(l)
		c.tags = append(c.tags, Identifier(l))
	}

	if f.Default != "" {
		def, ok := c.lookup(f.Default)
		if !ok {
			return nil, errors.Errorf("default %q is not in the catalog", f.Default)
		}
		c.def = def
	} else {
		c.def = c.tags[0]
	}

	return c, nil
}

func (c *Catalog) lookup(tag string) (Identifier, bool) {
	id, ok := c.index[strings.ToLower(strings.TrimSpace(tag))]
	return id, ok
}

// Tags returns every known identifier in catalog order.
func (c *Catalog) Tags() []Identifier {
	return append([]Identifier(nil), c.tags...)
}

func (c *Catalog) Default() Identifier {
	return c.def
}

package verify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dejo1307/cxtract/internal/symbols"
)

// ExpectedFile is the ground-truth description for one source file: the
// entities an extractor run over that file must produce. Authored externally,
// consumed here, never produced by the core.
type ExpectedFile struct {
	File      string             `yaml:"file"`
	Classes   []ExpectedClass    `yaml:"classes"`
	Functions []ExpectedFunction `yaml:"functions"`
}

// ExpectedClass describes one expected class or struct.
type ExpectedClass struct {
	Name    string             `yaml:"name"`
	Kind    string             `yaml:"kind"` // "class" (default) or "struct"
	Bases   []ExpectedBase     `yaml:"bases"`
	Fields  []ExpectedField    `yaml:"fields"`
	Methods []ExpectedFunction `yaml:"methods"`
}

// ExpectedBase is one expected base-class edge. An empty access means the
// kind-dependent default applies.
type ExpectedBase struct {
	Name   string `yaml:"name"`
	Access string `yaml:"access"`
}

// ExpectedField is one expected member field. An empty visibility means the
// kind-dependent default applies.
type ExpectedField struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Visibility string `yaml:"visibility"`
}

// ExpectedFunction is one expected function or method, identified by its
// canonical parameter types and return type, never by parameter names.
type ExpectedFunction struct {
	Name       string   `yaml:"name"`
	Returns    string   `yaml:"returns"`
	Params     []string `yaml:"params"`
	Qualifiers []string `yaml:"qualifiers"`
	Visibility string   `yaml:"visibility"`
}

func (c ExpectedClass) kind() symbols.ClassKind {
	if c.Kind == string(symbols.KindStruct) {
		return symbols.KindStruct
	}
	return symbols.KindClass
}

// Load reads a ground-truth YAML file.
func Load(path string) (*ExpectedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ground truth %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a ground-truth YAML document.
func Parse(data []byte) (*ExpectedFile, error) {
	var exp ExpectedFile
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parsing ground truth: %w", err)
	}
	return &exp, nil
}

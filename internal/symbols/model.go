package symbols

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Visibility is a member access level.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// ClassKind distinguishes class from struct declarations. The kind decides
// default member visibility and default base access.
type ClassKind string

const (
	KindClass  ClassKind = "class"
	KindStruct ClassKind = "struct"
)

// DefaultVisibility returns the member visibility used before any access
// label: private for class, public for struct.
func DefaultVisibility(k ClassKind) Visibility {
	if k == KindStruct {
		return Public
	}
	return Private
}

// DefaultBaseAccess returns the access applied to a base class written
// without an access keyword: private for class, public for struct.
func DefaultBaseAccess(k ClassKind) Visibility {
	if k == KindStruct {
		return Public
	}
	return Private
}

// BaseRef is a name-keyed inheritance edge. Bases resolve lazily; a name
// with no matching class in the model is a dangling reference, not an error.
type BaseRef struct {
	Name   string     `json:"name"`
	Access Visibility `json:"access"`
}

// Param is one function parameter in source order.
type Param struct {
	Type    string `json:"type"`
	Name    string `json:"param_name,omitempty"`
	Default string `json:"default,omitempty"`
}

// Function is a free function or a method. Parameter order is preserved
// verbatim from source.
type Function struct {
	Name       string     `json:"name"`
	Owner      string     `json:"owner,omitempty"` // qualified class name, "" for free functions
	ReturnType string     `json:"returns"`
	Params     []Param    `json:"params,omitempty"`
	Qualifiers []string   `json:"qualifiers,omitempty"` // const, virtual, override, static
	Visibility Visibility `json:"visibility,omitempty"`
	Ctor       bool       `json:"ctor,omitempty"`
	Dtor       bool       `json:"dtor,omitempty"`
	Line       int        `json:"line,omitempty"`
}

// QualifiedName is Owner::Name for methods, Name for free functions.
func (f Function) QualifiedName() string {
	if f.Owner != "" {
		return f.Owner + "::" + f.Name
	}
	return f.Name
}

// HasQualifier reports whether the function carries the given qualifier.
func (f Function) HasQualifier(q string) bool {
	for _, have := range f.Qualifiers {
		if have == q {
			return true
		}
	}
	return false
}

// Field is a member variable.
type Field struct {
	Name       string     `json:"name"`
	Owner      string     `json:"owner"`
	Type       string     `json:"type"`
	Visibility Visibility `json:"visibility"`
	Line       int        `json:"line,omitempty"`
}

// Class is a class or struct entity. Member order within each slice is
// insertion order from source.
type Class struct {
	Name    string     `json:"name"`
	Scope   string     `json:"scope,omitempty"` // enclosing class for nested types
	Kind    ClassKind  `json:"kind"`
	Bases   []BaseRef  `json:"bases,omitempty"`
	Fields  []Field    `json:"fields,omitempty"`
	Methods []Function `json:"methods,omitempty"`
	Line    int        `json:"line,omitempty"`
}

// QualifiedName is Scope::Name for nested classes, Name otherwise.
func (c Class) QualifiedName() string {
	if c.Scope != "" {
		return c.Scope + "::" + c.Name
	}
	return c.Name
}

// Alias is a lightweight typedef/using record, not a full entity.
type Alias struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Line   int    `json:"line,omitempty"`
}

// Model is the immutable symbol model for one translation unit. It is built
// once per file and discarded when the next file is processed; no state
// crosses files.
type Model struct {
	File      string            `json:"file"`
	Classes   []Class           `json:"classes,omitempty"`
	Functions []Function        `json:"functions,omitempty"` // free functions
	Aliases   []Alias           `json:"aliases,omitempty"`
	Macros    map[string]string `json:"macros,omitempty"`

	byName map[string]int // qualified class name -> index into Classes
}

// index builds the lookup table. Called once by the builder.
func (m *Model) index() {
	m.byName = make(map[string]int, len(m.Classes))
	for i, c := range m.Classes {
		m.byName[c.QualifiedName()] = i
	}
}

// Class looks up a class by qualified name.
func (m *Model) Class(name string) (*Class, bool) {
	if m.byName == nil {
		m.index()
	}
	if i, ok := m.byName[name]; ok {
		return &m.Classes[i], true
	}
	return nil, false
}

// ResolveBase resolves a base reference by name within this model. A false
// return means the base is declared in an unseen file; callers treat that as
// a dangling edge, never an error.
func (m *Model) ResolveBase(ref BaseRef) (*Class, bool) {
	return m.Class(ref.Name)
}

// EntityCount returns the number of entities: classes, their members, and
// free functions.
func (m *Model) EntityCount() int {
	n := len(m.Functions)
	for _, c := range m.Classes {
		n += 1 + len(c.Fields) + len(c.Methods)
	}
	return n
}

// jsonlRecord is one line of the JSONL serialization. Exactly one of the
// payload fields is set, discriminated by Kind.
type jsonlRecord struct {
	Kind     string            `json:"kind"` // "unit", "class", "function", "alias"
	File     string            `json:"file,omitempty"`
	Macros   map[string]string `json:"macros,omitempty"`
	Class    *Class            `json:"class,omitempty"`
	Function *Function         `json:"function,omitempty"`
	Alias    *Alias            `json:"alias,omitempty"`
}

// WriteJSONL serializes the model losslessly, one record per line: a unit
// header followed by classes, free functions, and aliases.
func (m *Model) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(jsonlRecord{Kind: "unit", File: m.File, Macros: m.Macros}); err != nil {
		return fmt.Errorf("encoding unit header: %w", err)
	}
	for i := range m.Classes {
		if err := enc.Encode(jsonlRecord{Kind: "class", Class: &m.Classes[i]}); err != nil {
			return fmt.Errorf("encoding class %q: %w", m.Classes[i].Name, err)
		}
	}
	for i := range m.Functions {
		if err := enc.Encode(jsonlRecord{Kind: "function", Function: &m.Functions[i]}); err != nil {
			return fmt.Errorf("encoding function %q: %w", m.Functions[i].Name, err)
		}
	}
	for i := range m.Aliases {
		if err := enc.Encode(jsonlRecord{Kind: "alias", Alias: &m.Aliases[i]}); err != nil {
			return fmt.Errorf("encoding alias %q: %w", m.Aliases[i].Name, err)
		}
	}
	return nil
}

// WriteJSONLFile serializes the model to the given path.
func (m *Model) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := m.WriteJSONL(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSONL reconstructs a model from its JSONL serialization.
func ReadJSONL(r io.Reader) (*Model, error) {
	m := &Model{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		switch rec.Kind {
		case "unit":
			m.File = rec.File
			m.Macros = rec.Macros
		case "class":
			if rec.Class != nil {
				m.Classes = append(m.Classes, *rec.Class)
			}
		case "function":
			if rec.Function != nil {
				m.Functions = append(m.Functions, *rec.Function)
			}
		case "alias":
			if rec.Alias != nil {
				m.Aliases = append(m.Aliases, *rec.Alias)
			}
		default:
			return nil, fmt.Errorf("unknown record kind %q", rec.Kind)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	m.index()
	return m, nil
}

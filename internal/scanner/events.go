package scanner

// EventKind discriminates declaration events.
type EventKind int

const (
	// ClassHeader is emitted when a class/struct header with a body is
	// recognized. The scanner has consumed the opening brace.
	ClassHeader EventKind = iota
	// AccessLabel is emitted for public:/protected:/private: labels.
	AccessLabel
	// FieldDecl is emitted for member field and variable declarations.
	FieldDecl
	// FunctionDecl is emitted for function/method declarations and
	// definitions. Bodies are skipped, never decomposed.
	FunctionDecl
	// AliasDecl is emitted for typedef and using alias declarations.
	AliasDecl
	// ScopeClose is emitted at the closing brace of a class/struct body.
	ScopeClose
)

// BaseRef is one entry of a base-clause, in source order. An empty Access
// means no explicit access keyword was written; the default depends on the
// deriving type's kind and is applied by the symbol builder.
type BaseRef struct {
	Name   string
	Access string
}

// Param is one function parameter, in source order.
type Param struct {
	Type    string
	Name    string // optional
	Default string // optional
}

// FuncDecl carries a recognized function or method declaration.
type FuncDecl struct {
	Name       string
	Owner      string // qualified owner for out-of-class definitions, else ""
	ReturnType string
	Params     []Param
	Qualifiers []string // subset of const, virtual, override, static; source order
	Ctor       bool
	Dtor       bool
}

// Event is a transient recognized declaration shape. Events are consumed
// immediately by the handler; the scanner reuses nothing after delivery.
type Event struct {
	Kind      EventKind
	Line      int
	Name      string    // class name, field name, alias name, or access label
	ClassKind string    // "class" or "struct" for ClassHeader
	Type      string    // field type, or alias target for AliasDecl
	Bases     []BaseRef // ClassHeader only
	Func      *FuncDecl // FunctionDecl only
}

// Handler consumes declaration events as the scanner recognizes them.
type Handler interface {
	HandleEvent(Event)
}

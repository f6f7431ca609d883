package lexer

// Kind classifies a lexical token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	Number
	String
	Char
	Operator
	Punct
	Comment
	Directive
)

var kindNames = map[Kind]string{
	EOF:       "eof",
	Ident:     "identifier",
	Keyword:   "keyword",
	Number:    "number",
	String:    "string",
	Char:      "char",
	Operator:  "operator",
	Punct:     "punctuation",
	Comment:   "comment",
	Directive: "directive",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Token is one lexical token with its source provenance. Tokens are
// immutable once produced by the lexer.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Column int
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

var keywords = map[string]bool{
	"class": true, "struct": true, "union": true, "enum": true,
	"public": true, "private": true, "protected": true,
	"virtual": true, "override": true, "final": true, "const": true,
	"static": true, "inline": true, "explicit": true, "friend": true,
	"void": true, "int": true, "char": true, "float": true, "double": true,
	"bool": true, "long": true, "short": true, "unsigned": true, "signed": true,
	"typedef": true, "using": true, "namespace": true, "operator": true,
	"template": true, "typename": true, "noexcept": true, "constexpr": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "return": true, "new": true, "delete": true,
	"this": true, "nullptr": true, "default": true, "extern": true,
	"volatile": true, "mutable": true, "sizeof": true,
}

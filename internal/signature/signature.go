// Package signature canonicalizes function signatures so that equality is
// structural: parameter names, whitespace, and qualifier spelling order never
// affect comparison.
package signature

import (
	"strings"

	"github.com/dejo1307/cxtract/internal/symbols"
)

// qualifierRank fixes the canonical qualifier order.
var qualifierRank = map[string]int{
	"const":    0,
	"virtual":  1,
	"override": 2,
	"static":   3,
}

// Canonical is the normalized form of a function signature. Two functions
// are the same signature iff their Canonical values are Equal.
type Canonical struct {
	Name       string
	Return     string
	Params     []string // canonical parameter types, source order
	Qualifiers []string // canonical order: const, virtual, override, static
}

// Normalize produces the canonical signature of a function. Parameter names
// and defaults are dropped; only types survive.
func Normalize(fn symbols.Function) Canonical {
	c := Canonical{
		Name:   fn.Name,
		Return: NormalizeType(fn.ReturnType),
	}
	for _, p := range fn.Params {
		c.Params = append(c.Params, NormalizeType(p.Type))
	}
	c.Qualifiers = NormalizeQualifiers(fn.Qualifiers)
	return c
}

// NormalizeQualifiers keeps the known qualifiers, deduplicated, in canonical
// order.
func NormalizeQualifiers(quals []string) []string {
	seen := make(map[string]bool, len(quals))
	var kept []string
	for _, q := range quals {
		if _, known := qualifierRank[q]; known && !seen[q] {
			seen[q] = true
			kept = append(kept, q)
		}
	}
	for i := 1; i < len(kept); i++ {
		for j := i; j > 0 && qualifierRank[kept[j]] < qualifierRank[kept[j-1]]; j-- {
			kept[j], kept[j-1] = kept[j-1], kept[j]
		}
	}
	return kept
}

// NormalizeType collapses whitespace and attaches pointer, reference, and
// array suffixes to the type text: "const char *" and "const  char*" both
// become "const char*".
func NormalizeType(t string) string {
	var sb strings.Builder
	sb.Grow(len(t))
	prev := byte(0)
	pendingSpace := false

	for i := 0; i < len(t); i++ {
		ch := t[i]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			pendingSpace = true
			continue
		}
		if pendingSpace && sb.Len() > 0 && wordByte(prev) && wordByte(ch) {
			sb.WriteByte(' ')
		}
		pendingSpace = false
		sb.WriteByte(ch)
		prev = ch
	}
	return sb.String()
}

func wordByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// Equal reports structural equality: same canonical parameter types in the
// same order, same canonical return type, same canonical qualifier set.
func (c Canonical) Equal(other Canonical) bool {
	if c.Name != other.Name || c.Return != other.Return {
		return false
	}
	if len(c.Params) != len(other.Params) || len(c.Qualifiers) != len(other.Qualifiers) {
		return false
	}
	for i := range c.Params {
		if c.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range c.Qualifiers {
		if c.Qualifiers[i] != other.Qualifiers[i] {
			return false
		}
	}
	return true
}

// String renders the canonical form, e.g.
// "void display() const virtual" or "Product* create_product(int,const char*,float)".
func (c Canonical) String() string {
	var sb strings.Builder
	if c.Return != "" {
		sb.WriteString(c.Return)
		sb.WriteByte(' ')
	}
	sb.WriteString(c.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(c.Params, ","))
	sb.WriteByte(')')
	for _, q := range c.Qualifiers {
		sb.WriteByte(' ')
		sb.WriteString(q)
	}
	return sb.String()
}

// Key is the comparable identity the diff engine uses for free functions:
// qualified name plus the canonical signature text. For a method the owner
// prefix makes the identity distinct from a free function of the same name.
func Key(fn symbols.Function) string {
	c := Normalize(fn)
	c.Name = fn.QualifiedName()
	return c.String()
}

// Package verify compares a built symbol model against a ground-truth
// expected model and reports matches, misses, and extras.
package verify

import (
	"sort"

	"github.com/google/uuid"

	"github.com/dejo1307/cxtract/internal/signature"
	"github.com/dejo1307/cxtract/internal/symbols"
)

// EntityRef identifies one comparable entity: kind, qualified name, and a
// detail string (canonical signature for functions, normalized type plus
// visibility for fields, access for bases).
type EntityRef struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

func (r EntityRef) key() string {
	return r.Kind + "|" + r.Name + "|" + r.Detail
}

// Stats summarizes a comparison.
type Stats struct {
	Matched int `json:"matched"`
	Missing int `json:"missing"`
	Extra   int `json:"extra"`
}

// Report is the deterministic, sorted result of one comparison. Neither
// input graph is mutated.
type Report struct {
	RunID   string      `json:"run_id"`
	File    string      `json:"file"`
	Matched []EntityRef `json:"matched,omitempty"`
	Missing []EntityRef `json:"missing,omitempty"` // expected but not found
	Extra   []EntityRef `json:"extra,omitempty"`   // found but not expected
	Stats   Stats       `json:"stats"`
}

// Clean reports whether every expected entity was found and nothing else.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

// Compare flattens both models into keyed entity references and computes the
// matched, missing, and extra sets.
func Compare(m *symbols.Model, exp *ExpectedFile) *Report {
	built := flattenModel(m)
	expected := flattenExpected(exp)

	report := &Report{
		RunID: uuid.NewString(),
		File:  m.File,
	}

	builtByKey := make(map[string]EntityRef, len(built))
	for _, ref := range built {
		builtByKey[ref.key()] = ref
	}
	expectedByKey := make(map[string]EntityRef, len(expected))
	for _, ref := range expected {
		expectedByKey[ref.key()] = ref
	}

	for _, ref := range expected {
		if _, ok := builtByKey[ref.key()]; ok {
			report.Matched = append(report.Matched, ref)
		} else {
			report.Missing = append(report.Missing, ref)
		}
	}
	for _, ref := range built {
		if _, ok := expectedByKey[ref.key()]; !ok {
			report.Extra = append(report.Extra, ref)
		}
	}

	sortRefs(report.Matched)
	sortRefs(report.Missing)
	sortRefs(report.Extra)
	report.Stats = Stats{
		Matched: len(report.Matched),
		Missing: len(report.Missing),
		Extra:   len(report.Extra),
	}
	return report
}

func sortRefs(refs []EntityRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Detail < refs[j].Detail
	})
}

func flattenModel(m *symbols.Model) []EntityRef {
	var refs []EntityRef
	for _, c := range m.Classes {
		owner := c.QualifiedName()
		refs = append(refs, EntityRef{Kind: string(c.Kind), Name: owner})
		for _, base := range c.Bases {
			refs = append(refs, EntityRef{
				Kind:   "base",
				Name:   owner + "::" + base.Name,
				Detail: string(base.Access),
			})
		}
		for _, f := range c.Fields {
			refs = append(refs, fieldRef(owner, f.Name, f.Type, string(f.Visibility)))
		}
		for _, fn := range c.Methods {
			refs = append(refs, methodRef(owner, fn))
		}
	}
	for _, fn := range m.Functions {
		refs = append(refs, EntityRef{
			Kind:   "function",
			Name:   fn.Name,
			Detail: signature.Key(fn),
		})
	}
	return refs
}

func flattenExpected(exp *ExpectedFile) []EntityRef {
	var refs []EntityRef
	for _, c := range exp.Classes {
		kind := c.kind()
		refs = append(refs, EntityRef{Kind: string(kind), Name: c.Name})
		for _, base := range c.Bases {
			access := base.Access
			if access == "" {
				access = string(symbols.DefaultBaseAccess(kind))
			}
			refs = append(refs, EntityRef{
				Kind:   "base",
				Name:   c.Name + "::" + base.Name,
				Detail: access,
			})
		}
		for _, f := range c.Fields {
			vis := f.Visibility
			if vis == "" {
				vis = string(symbols.DefaultVisibility(kind))
			}
			refs = append(refs, fieldRef(c.Name, f.Name, f.Type, vis))
		}
		for _, fn := range c.Methods {
			vis := fn.Visibility
			if vis == "" {
				vis = string(symbols.DefaultVisibility(kind))
			}
			refs = append(refs, methodRef(c.Name, symbols.Function{
				Name:       fn.Name,
				ReturnType: fn.Returns,
				Params:     typedParams(fn.Params),
				Qualifiers: fn.Qualifiers,
				Visibility: symbols.Visibility(vis),
			}))
		}
	}
	for _, fn := range exp.Functions {
		refs = append(refs, EntityRef{
			Kind: "function",
			Name: fn.Name,
			Detail: signature.Key(symbols.Function{
				Name:       fn.Name,
				ReturnType: fn.Returns,
				Params:     typedParams(fn.Params),
				Qualifiers: fn.Qualifiers,
			}),
		})
	}
	return refs
}

func fieldRef(owner, name, typ, visibility string) EntityRef {
	return EntityRef{
		Kind:   "field",
		Name:   owner + "::" + name,
		Detail: signature.NormalizeType(typ) + " " + visibility,
	}
}

func methodRef(owner string, fn symbols.Function) EntityRef {
	detail := signature.Normalize(fn).String()
	if fn.Visibility != "" {
		detail += " " + string(fn.Visibility)
	}
	return EntityRef{
		Kind:   "method",
		Name:   owner + "::" + fn.Name,
		Detail: detail,
	}
}

func typedParams(types []string) []symbols.Param {
	params := make([]symbols.Param, 0, len(types))
	for _, t := range types {
		params = append(params, symbols.Param{Type: t})
	}
	return params
}

package symbols

import (
	"sort"
	"strings"

	"github.com/dejo1307/cxtract/internal/scanner"
)

// Builder folds declaration events into a Model. It keeps a scope stack of
// open class bodies; the current visibility cursor lives on each frame and
// never escapes the file being analyzed.
type Builder struct {
	file   string
	model  *Model
	stack  []*frame
	closed []orderedClass
	opened int // source-order counter for classes
}

type frame struct {
	class Class
	vis   Visibility
	order int
}

type orderedClass struct {
	class Class
	order int
}

// NewBuilder creates a builder for one translation unit.
func NewBuilder(file string) *Builder {
	return &Builder{
		file:  file,
		model: &Model{File: file},
	}
}

// HandleEvent implements scanner.Handler.
func (b *Builder) HandleEvent(ev scanner.Event) {
	switch ev.Kind {
	case scanner.ClassHeader:
		b.openClass(ev)
	case scanner.AccessLabel:
		if top := b.top(); top != nil {
			top.vis = Visibility(ev.Name)
		}
	case scanner.FieldDecl:
		b.addField(ev)
	case scanner.FunctionDecl:
		b.addFunction(ev)
	case scanner.AliasDecl:
		b.model.Aliases = append(b.model.Aliases, Alias{
			Name:   ev.Name,
			Target: ev.Type,
			Line:   ev.Line,
		})
	case scanner.ScopeClose:
		b.closeClass()
	}
}

// Model finalizes and returns the symbol model. Classes left open by a
// mid-file abort are flushed so partial results survive fatal scan errors.
// Class order in the model is source (header) order.
func (b *Builder) Model() *Model {
	for len(b.stack) > 0 {
		b.closeClass()
	}
	sort.SliceStable(b.closed, func(i, j int) bool {
		return b.closed[i].order < b.closed[j].order
	})
	b.model.Classes = make([]Class, len(b.closed))
	for i, oc := range b.closed {
		b.model.Classes[i] = oc.class
	}
	b.model.index()
	return b.model
}

func (b *Builder) openClass(ev scanner.Event) {
	kind := ClassKind(ev.ClassKind)
	c := Class{
		Name:  ev.Name,
		Scope: b.currentScope(),
		Kind:  kind,
		Line:  ev.Line,
	}
	for _, base := range ev.Bases {
		access := Visibility(base.Access)
		if access == "" {
			access = DefaultBaseAccess(kind)
		}
		c.Bases = append(c.Bases, BaseRef{Name: base.Name, Access: access})
	}
	b.stack = append(b.stack, &frame{
		class: c,
		vis:   DefaultVisibility(kind),
		order: b.opened,
	})
	b.opened++
}

func (b *Builder) closeClass() {
	if len(b.stack) == 0 {
		return
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.attachClass(top.class, top.order)
}

// attachClass records a finished class, merging into an earlier placeholder
// created for out-of-class method definitions. Every entity keeps a unique
// (name, scope) slot.
func (b *Builder) attachClass(c Class, order int) {
	for i := range b.closed {
		if b.closed[i].class.QualifiedName() == c.QualifiedName() {
			merged := c
			merged.Methods = append(merged.Methods, b.closed[i].class.Methods...)
			merged.Fields = append(merged.Fields, b.closed[i].class.Fields...)
			b.closed[i].class = merged
			return
		}
	}
	b.closed = append(b.closed, orderedClass{class: c, order: order})
}

func (b *Builder) addField(ev scanner.Event) {
	top := b.top()
	if top == nil {
		return // file-scope variables are not modeled
	}
	top.class.Fields = append(top.class.Fields, Field{
		Name:       ev.Name,
		Owner:      top.class.QualifiedName(),
		Type:       ev.Type,
		Visibility: top.vis,
		Line:       ev.Line,
	})
}

func (b *Builder) addFunction(ev scanner.Event) {
	fd := ev.Func
	fn := Function{
		Name:       fd.Name,
		ReturnType: fd.ReturnType,
		Qualifiers: fd.Qualifiers,
		Ctor:       fd.Ctor,
		Dtor:       fd.Dtor,
		Line:       ev.Line,
	}
	for _, p := range fd.Params {
		fn.Params = append(fn.Params, Param{Type: p.Type, Name: p.Name, Default: p.Default})
	}

	// Out-of-class definition: attach by the qualified owner name.
	if fd.Owner != "" {
		fn.Owner = fd.Owner
		b.attachMethodByName(fd.Owner, fn, ev.Line)
		return
	}

	if top := b.top(); top != nil {
		fn.Owner = top.class.QualifiedName()
		fn.Visibility = top.vis
		top.class.Methods = append(top.class.Methods, fn)
		return
	}

	b.model.Functions = append(b.model.Functions, fn)
}

// attachMethodByName finds the owning class among open frames or already
// closed classes; an unseen owner gets a placeholder class so the method is
// never silently dropped.
func (b *Builder) attachMethodByName(owner string, fn Function, line int) {
	simple := owner
	if i := strings.LastIndex(owner, "::"); i >= 0 {
		simple = owner[i+2:]
	}
	for i := len(b.stack) - 1; i >= 0; i-- {
		if b.stack[i].class.Name == simple {
			b.stack[i].class.Methods = append(b.stack[i].class.Methods, fn)
			return
		}
	}
	for i := range b.closed {
		if b.closed[i].class.Name == simple {
			b.closed[i].class.Methods = append(b.closed[i].class.Methods, fn)
			return
		}
	}
	b.attachClass(Class{
		Name:    simple,
		Kind:    KindClass,
		Methods: []Function{fn},
		Line:    line,
	}, b.opened)
	b.opened++
}

func (b *Builder) top() *frame {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *Builder) currentScope() string {
	if top := b.top(); top != nil {
		return top.class.QualifiedName()
	}
	return ""
}

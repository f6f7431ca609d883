package scanner

import (
	"strings"

	"github.com/dejo1307/cxtract/internal/diag"
	"github.com/dejo1307/cxtract/internal/lexer"
)

// DefaultMaxDepth is the brace-nesting budget per file. Exceeding it aborts
// the file with a TimeoutError.
const DefaultMaxDepth = 256

// Options configures a scan.
type Options struct {
	// Macros is a read-only object-like macro table used to substitute
	// identifiers in array-size and default-value contexts.
	Macros map[string]string
	// MaxDepth caps brace nesting; 0 means DefaultMaxDepth.
	MaxDepth int
}

// Scanner is a resilient single-pass recognizer of declaration shapes. It is
// deliberately not a full grammar: constructs it does not understand
// (templates, operator overloads, lambdas) are skipped via balanced-delimiter
// matching to the next declaration boundary instead of failing the file.
type Scanner struct {
	toks     []lexer.Token
	pos      int
	macros   map[string]string
	maxDepth int
	handler  Handler

	// scopes tracks open braces the scanner descended into: class bodies
	// and transparent scopes (namespace, extern "C").
	scopes []scope
}

type scope struct {
	class       string // class name, "" for transparent scopes
	kind        string // "class" or "struct" when class != ""
	typedefTail bool   // anonymous typedef'd struct: alias follows the close
	tag         string // original tag for typedef'd structs
}

// New creates a scanner over a token sequence. Comment and directive tokens
// are dropped up front so delimiter counting never sees them.
func New(toks []lexer.Token, opts Options) *Scanner {
	kept := make([]lexer.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == lexer.Comment || t.Kind == lexer.Directive {
			continue
		}
		kept = append(kept, t)
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Scanner{toks: kept, macros: opts.Macros, maxDepth: maxDepth}
}

// Scan walks the token sequence and delivers declaration events to h.
// A non-nil error is fatal for this file; events delivered before the error
// still describe a valid partial model.
func (s *Scanner) Scan(h Handler) error {
	s.handler = h
	for !s.atEnd() {
		if err := s.scanTopLevel(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanTopLevel() error {
	t := s.cur()

	switch {
	case t.Is(lexer.Punct, ";"):
		s.advance()
		return nil

	case t.Is(lexer.Punct, "}"):
		return s.closeScope()

	case t.Is(lexer.Punct, "{"):
		// Stray block; skip it whole.
		return s.skipBraces(t.Line)

	case t.Is(lexer.Keyword, "template"):
		return s.skipTemplate()

	case t.Is(lexer.Keyword, "typedef"):
		return s.scanTypedef()

	case t.Is(lexer.Keyword, "using"):
		s.scanUsing()
		return nil

	case t.Is(lexer.Keyword, "namespace"):
		return s.enterTransparent()

	case t.Is(lexer.Keyword, "extern") && s.peek(1).Kind == lexer.String:
		return s.enterTransparent()

	case t.Is(lexer.Keyword, "enum") || t.Is(lexer.Keyword, "union"):
		return s.skipStatement()

	case t.Is(lexer.Keyword, "class") || t.Is(lexer.Keyword, "struct"):
		ok, err := s.scanClassHeader(false)
		if err != nil || ok {
			return err
		}
		// Not a definition header ("struct X* p"); fall through to a
		// plain declaration with the keyword as part of the type.
		return s.scanDeclaration()

	case s.inClass() && isAccessKeyword(t) && s.peek(1).Is(lexer.Punct, ":"):
		s.emit(Event{Kind: AccessLabel, Name: t.Text, Line: t.Line})
		s.advance()
		s.advance()
		return nil

	case t.Kind == lexer.EOF:
		s.advance()
		return nil

	default:
		return s.scanDeclaration()
	}
}

// scanClassHeader recognizes "class|struct Name [: bases] {". It returns
// false with the position restored when the keyword turns out to be part of
// an ordinary declaration instead of a definition header.
func (s *Scanner) scanClassHeader(fromTypedef bool) (bool, error) {
	start := s.pos
	kind := s.cur().Text
	line := s.cur().Line
	s.advance()

	name := ""
	if s.cur().Kind == lexer.Ident {
		name = s.cur().Text
		s.advance()
	}

	var bases []BaseRef
	if s.cur().Is(lexer.Punct, ":") {
		s.advance()
		bases = s.scanBases()
	}

	switch {
	case s.cur().Is(lexer.Punct, "{"):
		if name == "" && !fromTypedef {
			// Anonymous aggregate outside a typedef: nothing to name,
			// skip the whole body.
			s.pos = start
			return true, s.skipStatement()
		}
		s.emit(Event{Kind: ClassHeader, Name: name, ClassKind: kind, Bases: bases, Line: line})
		s.scopes = append(s.scopes, scope{class: name, kind: kind})
		s.advance()
		return true, nil

	case s.cur().Is(lexer.Punct, ";") && name != "":
		// Forward declaration: no entity.
		s.advance()
		return true, nil

	default:
		s.pos = start
		return false, nil
	}
}

// scanBases reads a base-clause up to the opening brace. Access keywords are
// recorded verbatim; an absent keyword stays empty so the builder can apply
// the kind-dependent default.
func (s *Scanner) scanBases() []BaseRef {
	var bases []BaseRef
	for !s.atEnd() && !s.cur().Is(lexer.Punct, "{") && !s.cur().Is(lexer.Punct, ";") {
		var ref BaseRef
		for isAccessKeyword(s.cur()) || s.cur().Is(lexer.Keyword, "virtual") {
			if isAccessKeyword(s.cur()) {
				ref.Access = s.cur().Text
			}
			s.advance()
		}
		ref.Name = s.readQualifiedName()
		if ref.Name == "" {
			s.advance()
			continue
		}
		bases = append(bases, ref)
		if s.cur().Is(lexer.Punct, ",") {
			s.advance()
		}
	}
	return bases
}

// readQualifiedName reads ident("::" ident)*, returning the joined spelling.
// Template argument lists on any segment are skipped, not recorded.
func (s *Scanner) readQualifiedName() string {
	if s.cur().Kind != lexer.Ident {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(s.cur().Text)
	s.advance()
	for {
		if s.cur().Is(lexer.Operator, "<") {
			s.skipAngles()
		}
		if !s.cur().Is(lexer.Operator, "::") || s.peek(1).Kind != lexer.Ident {
			break
		}
		s.advance()
		sb.WriteString("::")
		sb.WriteString(s.cur().Text)
		s.advance()
	}
	return sb.String()
}

func (s *Scanner) scanTypedef() error {
	line := s.cur().Line
	s.advance() // typedef

	if s.cur().Is(lexer.Keyword, "struct") || s.cur().Is(lexer.Keyword, "class") {
		kindStart := s.pos
		kind := s.cur().Text
		s.advance()
		tag := ""
		if s.cur().Kind == lexer.Ident {
			tag = s.cur().Text
			s.advance()
		}

		if s.cur().Is(lexer.Punct, "{") {
			// typedef struct [Tag] { ... } Alias; names the entity by the
			// tag when present, otherwise by the trailing alias.
			alias := s.peekTypedefAlias()
			name := tag
			if name == "" {
				name = alias
			}
			if name == "" {
				s.pos = kindStart
				return s.skipStatement()
			}
			s.emit(Event{Kind: ClassHeader, Name: name, ClassKind: kind, Line: line})
			s.scopes = append(s.scopes, scope{class: name, kind: kind, typedefTail: true, tag: tag})
			s.advance()
			return nil
		}

		// typedef struct Tag Alias;
		if tag != "" && s.cur().Kind == lexer.Ident {
			s.emit(Event{Kind: AliasDecl, Name: s.cur().Text, Type: tag, Line: line})
		}
		return s.skipStatement()
	}

	// typedef X Y; the last identifier before ';' is the alias name.
	var toks []lexer.Token
	for !s.atEnd() && !s.cur().Is(lexer.Punct, ";") {
		if s.cur().Is(lexer.Punct, "(") {
			// Function-pointer typedefs are not modeled.
			return s.skipStatement()
		}
		toks = append(toks, s.cur())
		s.advance()
	}
	s.advance()
	if len(toks) >= 2 && toks[len(toks)-1].Kind == lexer.Ident {
		s.emit(Event{
			Kind: AliasDecl,
			Name: toks[len(toks)-1].Text,
			Type: spell(toks[:len(toks)-1]),
			Line: line,
		})
	}
	return nil
}

// peekTypedefAlias looks past the balanced body starting at the current "{"
// and returns the identifier that follows it, without moving the scanner.
func (s *Scanner) peekTypedefAlias() string {
	depth := 0
	for i := s.pos; i < len(s.toks); i++ {
		switch {
		case s.toks[i].Is(lexer.Punct, "{"):
			depth++
		case s.toks[i].Is(lexer.Punct, "}"):
			depth--
			if depth == 0 {
				if i+1 < len(s.toks) && s.toks[i+1].Kind == lexer.Ident {
					return s.toks[i+1].Text
				}
				return ""
			}
		}
	}
	return ""
}

func (s *Scanner) scanUsing() {
	line := s.cur().Line
	s.advance() // using
	if s.cur().Kind == lexer.Ident && s.peek(1).Is(lexer.Operator, "=") {
		name := s.cur().Text
		s.advance()
		s.advance()
		var toks []lexer.Token
		for !s.atEnd() && !s.cur().Is(lexer.Punct, ";") {
			toks = append(toks, s.cur())
			s.advance()
		}
		s.advance()
		if len(toks) > 0 {
			s.emit(Event{Kind: AliasDecl, Name: name, Type: spell(toks), Line: line})
		}
		return
	}
	// using namespace ...; and using ns::name; add no entities.
	for !s.atEnd() && !s.cur().Is(lexer.Punct, ";") {
		s.advance()
	}
	s.advance()
}

// enterTransparent descends into a namespace or extern "C" block without
// opening a class scope; a declaration-form (extern "C" int f();) is handed
// to the declaration scanner instead.
func (s *Scanner) enterTransparent() error {
	start := s.pos
	s.advance()
	for !s.atEnd() && !s.cur().Is(lexer.Punct, "{") && !s.cur().Is(lexer.Punct, ";") {
		s.advance()
	}
	if s.cur().Is(lexer.Punct, "{") {
		s.scopes = append(s.scopes, scope{})
		s.advance()
		return nil
	}
	s.pos = start
	s.advance()
	return s.scanDeclaration()
}

func (s *Scanner) closeScope() error {
	line := s.cur().Line
	s.advance() // }
	if len(s.scopes) == 0 {
		return nil
	}
	top := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]

	if top.class == "" {
		return nil // transparent scope
	}
	if top.typedefTail {
		// Consume "Alias;" (or "*Alias;") after the body.
		alias := ""
		for !s.atEnd() && !s.cur().Is(lexer.Punct, ";") {
			if s.cur().Kind == lexer.Ident {
				alias = s.cur().Text
			}
			s.advance()
		}
		s.advance()
		if alias != "" && top.tag != "" && alias != top.tag {
			s.emit(Event{Kind: AliasDecl, Name: alias, Type: top.tag, Line: line})
		}
	} else if s.cur().Is(lexer.Punct, ";") {
		s.advance()
	}
	s.emit(Event{Kind: ScopeClose, Name: top.class, Line: line})
	return nil
}

// scanDeclaration recognizes one member or free declaration. Classification
// follows a fixed precedence: a parenthesized parameter list followed by ";",
// "{", "=", ":", or a qualifier keyword makes it a function; otherwise it is
// a field.
func (s *Scanner) scanDeclaration() error {
	line := s.cur().Line
	var head []lexer.Token
	var quals []string
	dtor := false
	angles := 0

	for !s.atEnd() {
		t := s.cur()
		switch {
		case t.Is(lexer.Punct, ";"):
			s.advance()
			s.emitField(head, line)
			return nil

		case t.Is(lexer.Punct, "}"):
			s.emitField(head, line)
			return nil

		case t.Is(lexer.Punct, "{"):
			// No parameter list seen: an unrecognized braced construct.
			return s.skipBraces(t.Line)

		case t.Is(lexer.Punct, "("):
			return s.scanFunctionTail(head, quals, dtor, line)

		case t.Is(lexer.Operator, "="):
			// Field with initializer; the declarator is complete.
			if err := s.skipStatement(); err != nil {
				return err
			}
			s.emitField(head, line)
			return nil

		case t.Is(lexer.Operator, "~"):
			dtor = true
			s.advance()

		case t.Is(lexer.Keyword, "operator"):
			// Operator overloads are skipped, not modeled.
			return s.skipStatement()

		case t.Is(lexer.Keyword, "virtual"), t.Is(lexer.Keyword, "static"):
			quals = append(quals, t.Text)
			s.advance()

		case t.Is(lexer.Keyword, "inline"), t.Is(lexer.Keyword, "explicit"),
			t.Is(lexer.Keyword, "friend"), t.Is(lexer.Keyword, "constexpr"),
			t.Is(lexer.Keyword, "extern"), t.Is(lexer.Keyword, "mutable"),
			t.Is(lexer.Keyword, "typename"):
			s.advance()

		case t.Is(lexer.Punct, ","):
			if angles > 0 {
				head = append(head, t)
				s.advance()
				continue
			}
			// Multi-declarator lists: model the first declarator, skip
			// the rest of the statement.
			if err := s.skipStatement(); err != nil {
				return err
			}
			s.emitField(head, line)
			return nil

		case t.Is(lexer.Operator, "<") && len(head) > 0 && head[len(head)-1].Kind == lexer.Ident:
			angles++
			head = append(head, t)
			s.advance()

		case t.Is(lexer.Operator, ">") && angles > 0:
			angles--
			head = append(head, t)
			s.advance()

		case t.Kind == lexer.String, t.Kind == lexer.Char:
			s.advance() // e.g. the "C" in extern "C"

		case t.Kind == lexer.EOF:
			s.advance()
			return nil

		default:
			head = append(head, t)
			s.advance()
		}
	}
	return nil
}

// scanFunctionTail is entered with the scanner on "(". It parses the
// parameter list, trailing qualifiers, and the terminator (declaration,
// defaulted/deleted body, or brace-skipped definition).
func (s *Scanner) scanFunctionTail(head []lexer.Token, quals []string, dtor bool, line int) error {
	openLine := s.cur().Line
	groups, err := s.scanParamGroups(openLine)
	if err != nil {
		return err
	}

	// Classification: function only if the list is followed by a
	// function-ish token; otherwise this was a parenthesized declarator or
	// initializer, so it stays a field.
	if !s.startsFunctionTail() {
		if err := s.skipStatement(); err != nil {
			return err
		}
		s.emitField(head, line)
		return nil
	}

	name, owner, ret := splitHead(head, dtor)
	if name == "" {
		return s.skipStatement()
	}

	fd := &FuncDecl{
		Name:       name,
		Owner:      owner,
		ReturnType: ret,
		Qualifiers: quals,
		Dtor:       dtor,
	}
	for _, g := range groups {
		if p, ok := s.parseParam(g); ok {
			fd.Params = append(fd.Params, p)
		}
	}

	enclosing := s.currentClass()
	if owner != "" {
		enclosing = lastSegment(owner)
	}
	if !dtor && ret == "" && name == enclosing {
		fd.Ctor = true
	}

	// Trailing qualifiers and noise after the parameter list.
	for !s.atEnd() {
		t := s.cur()
		switch {
		case t.Is(lexer.Keyword, "const"), t.Is(lexer.Keyword, "override"):
			fd.Qualifiers = append(fd.Qualifiers, t.Text)
			s.advance()
		case t.Is(lexer.Keyword, "final"), t.Is(lexer.Keyword, "noexcept"),
			t.Is(lexer.Keyword, "volatile"),
			t.Is(lexer.Operator, "&"), t.Is(lexer.Operator, "&&"):
			s.advance()
		case t.Is(lexer.Operator, "->"):
			// Trailing return type; consume up to the terminator.
			s.advance()
			for !s.atEnd() && !s.cur().Is(lexer.Punct, ";") && !s.cur().Is(lexer.Punct, "{") {
				s.advance()
			}
		default:
			goto terminator
		}
	}

terminator:
	switch {
	case s.cur().Is(lexer.Punct, ";"):
		s.advance()

	case s.cur().Is(lexer.Operator, "="):
		// "= default;", "= delete;", "= 0;"
		for !s.atEnd() && !s.cur().Is(lexer.Punct, ";") {
			s.advance()
		}
		s.advance()

	case s.cur().Is(lexer.Punct, ":"):
		if err := s.skipInitList(); err != nil {
			return err
		}
		if s.cur().Is(lexer.Punct, "{") {
			if err := s.skipBraces(s.cur().Line); err != nil {
				return err
			}
		}

	case s.cur().Is(lexer.Punct, "{"):
		if err := s.skipBraces(s.cur().Line); err != nil {
			return err
		}
	}

	s.emit(Event{Kind: FunctionDecl, Name: name, Func: fd, Line: line})
	return nil
}

// startsFunctionTail reports whether the token after a parameter list
// classifies the declaration as a function under the fixed precedence rule.
func (s *Scanner) startsFunctionTail() bool {
	t := s.cur()
	switch {
	case t.Is(lexer.Punct, ";"), t.Is(lexer.Punct, "{"), t.Is(lexer.Punct, ":"):
		return true
	case t.Is(lexer.Operator, "="), t.Is(lexer.Operator, "->"),
		t.Is(lexer.Operator, "&"), t.Is(lexer.Operator, "&&"):
		return true
	case t.Is(lexer.Keyword, "const"), t.Is(lexer.Keyword, "override"),
		t.Is(lexer.Keyword, "final"), t.Is(lexer.Keyword, "noexcept"),
		t.Is(lexer.Keyword, "volatile"):
		return true
	}
	return false
}

// scanParamGroups consumes "(" ... ")" and returns the raw token groups
// split at top-level commas.
func (s *Scanner) scanParamGroups(openLine int) ([][]lexer.Token, error) {
	s.advance() // (
	var groups [][]lexer.Token
	var cur []lexer.Token
	parens, braces, angles := 0, 0, 0

	flush := func() {
		if len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
		}
	}

	for !s.atEnd() {
		t := s.cur()
		switch {
		case t.Is(lexer.Punct, ")") && parens == 0:
			s.advance()
			flush()
			return groups, nil
		case t.Is(lexer.Punct, ",") && parens == 0 && braces == 0 && angles == 0:
			s.advance()
			flush()
			continue
		case t.Is(lexer.Punct, "("):
			parens++
		case t.Is(lexer.Punct, ")"):
			parens--
		case t.Is(lexer.Punct, "{"):
			braces++
		case t.Is(lexer.Punct, "}"):
			braces--
		case t.Is(lexer.Operator, "<") && len(cur) > 0 && cur[len(cur)-1].Kind == lexer.Ident:
			angles++
		case t.Is(lexer.Operator, ">") && angles > 0:
			angles--
		}
		cur = append(cur, t)
		s.advance()
	}
	return nil, &diag.UnbalancedDelimiterError{Delim: "(", Line: openLine}
}

// parseParam splits one raw parameter into type, optional name, and optional
// default. Array suffixes fold into the type; the optional macro table
// substitutes identifiers in array sizes and defaults.
func (s *Scanner) parseParam(toks []lexer.Token) (Param, bool) {
	if len(toks) == 0 {
		return Param{}, false
	}
	if len(toks) == 1 && toks[0].Is(lexer.Keyword, "void") {
		return Param{}, false // (void) means no parameters
	}

	var p Param
	// Default value after "=".
	for i, t := range toks {
		if t.Is(lexer.Operator, "=") {
			p.Default = s.substitute(spell(toks[i+1:]))
			toks = toks[:i]
			break
		}
	}

	// Array suffix.
	arr := ""
	for i, t := range toks {
		if t.Is(lexer.Punct, "[") {
			arr = s.spellArray(toks[i:])
			toks = toks[:i]
			break
		}
	}

	if len(toks) >= 2 && toks[len(toks)-1].Kind == lexer.Ident &&
		!toks[len(toks)-2].Is(lexer.Operator, "::") {
		p.Name = toks[len(toks)-1].Text
		toks = toks[:len(toks)-1]
	}
	p.Type = spell(toks) + arr
	if p.Type == "" {
		return Param{}, false
	}
	return p, true
}

// emitField recognizes "type name [size]" from the collected head tokens.
// A head without a trailing name identifier yields no entity.
func (s *Scanner) emitField(head []lexer.Token, line int) {
	if len(head) < 2 {
		return
	}
	arr := ""
	for i, t := range head {
		if t.Is(lexer.Punct, "[") {
			arr = s.spellArray(head[i:])
			head = head[:i]
			break
		}
	}
	if len(head) < 2 || head[len(head)-1].Kind != lexer.Ident ||
		head[len(head)-2].Is(lexer.Operator, "::") {
		return
	}
	name := head[len(head)-1].Text
	typ := spell(head[:len(head)-1]) + arr
	s.emit(Event{Kind: FieldDecl, Name: name, Type: typ, Line: line})
}

// spellArray renders "[...]"" suffix tokens, substituting a macro name used
// as the size.
func (s *Scanner) spellArray(toks []lexer.Token) string {
	var inner []lexer.Token
	depth := 0
	for _, t := range toks {
		switch {
		case t.Is(lexer.Punct, "["):
			depth++
		case t.Is(lexer.Punct, "]"):
			depth--
		case depth > 0:
			inner = append(inner, t)
		}
	}
	size := spell(inner)
	return "[" + s.substitute(size) + "]"
}

// substitute replaces a lone identifier with its object-like macro value.
func (s *Scanner) substitute(text string) string {
	if v, ok := s.macros[text]; ok && v != "" {
		return v
	}
	return text
}

// skipInitList consumes a constructor member-initializer list, balancing
// parens and braces inside each initializer so the function body's opening
// brace is never confused with an initializer's.
func (s *Scanner) skipInitList() error {
	s.advance() // :
	for !s.atEnd() {
		if s.cur().Kind != lexer.Ident && s.cur().Kind != lexer.Keyword {
			return nil
		}
		s.readQualifiedName()
		switch {
		case s.cur().Is(lexer.Punct, "("):
			if err := s.skipParens(s.cur().Line); err != nil {
				return err
			}
		case s.cur().Is(lexer.Punct, "{"):
			if err := s.skipBraces(s.cur().Line); err != nil {
				return err
			}
		default:
			return nil
		}
		if !s.cur().Is(lexer.Punct, ",") {
			return nil
		}
		s.advance()
	}
	return nil
}

// skipBraces consumes a balanced { ... } run starting at the current "{".
func (s *Scanner) skipBraces(openLine int) error {
	depth := 0
	for !s.atEnd() {
		switch {
		case s.cur().Is(lexer.Punct, "{"):
			depth++
			if depth > s.maxDepth {
				return &diag.TimeoutError{Reason: "nesting depth", Limit: s.maxDepth}
			}
		case s.cur().Is(lexer.Punct, "}"):
			depth--
			if depth == 0 {
				s.advance()
				return nil
			}
		}
		s.advance()
	}
	return &diag.UnbalancedDelimiterError{Delim: "{", Line: openLine}
}

// skipParens consumes a balanced ( ... ) run starting at the current "(".
func (s *Scanner) skipParens(openLine int) error {
	depth := 0
	for !s.atEnd() {
		switch {
		case s.cur().Is(lexer.Punct, "("):
			depth++
		case s.cur().Is(lexer.Punct, ")"):
			depth--
			if depth == 0 {
				s.advance()
				return nil
			}
		}
		s.advance()
	}
	return &diag.UnbalancedDelimiterError{Delim: "(", Line: openLine}
}

// skipStatement consumes tokens through the next ";" at delimiter depth
// zero, balancing braces and parens on the way. A balanced brace run closing
// back to depth zero also ends the statement, since definitions need no
// trailing semicolon.
func (s *Scanner) skipStatement() error {
	braces, parens := 0, 0
	openLine := s.cur().Line
	for !s.atEnd() {
		t := s.cur()
		switch {
		case t.Is(lexer.Punct, ";") && braces == 0 && parens == 0:
			s.advance()
			return nil
		case t.Is(lexer.Punct, "{"):
			braces++
			if braces > s.maxDepth {
				return &diag.TimeoutError{Reason: "nesting depth", Limit: s.maxDepth}
			}
		case t.Is(lexer.Punct, "}"):
			if braces == 0 {
				return nil // closes an enclosing scope; leave it
			}
			braces--
			if braces == 0 && parens == 0 {
				s.advance()
				if s.cur().Is(lexer.Punct, ";") {
					s.advance()
				}
				return nil
			}
		case t.Is(lexer.Punct, "("):
			parens++
		case t.Is(lexer.Punct, ")"):
			if parens > 0 {
				parens--
			}
		}
		s.advance()
	}
	if braces > 0 {
		return &diag.UnbalancedDelimiterError{Delim: "{", Line: openLine}
	}
	return nil
}

// skipTemplate consumes "template <...>" and the templated declaration that
// follows, to the next boundary.
func (s *Scanner) skipTemplate() error {
	s.advance() // template
	if s.cur().Is(lexer.Operator, "<") {
		s.skipAngles()
	}
	return s.skipStatement()
}

// skipAngles consumes a balanced < ... > run with a bailout on statement
// delimiters, since ">" is ambiguous with the comparison operator.
func (s *Scanner) skipAngles() {
	depth := 0
	for !s.atEnd() {
		t := s.cur()
		switch {
		case t.Is(lexer.Operator, "<"):
			depth++
		case t.Is(lexer.Operator, ">"):
			depth--
			if depth == 0 {
				s.advance()
				return
			}
		case t.Is(lexer.Operator, ">>"):
			depth -= 2
			if depth <= 0 {
				s.advance()
				return
			}
		case t.Is(lexer.Punct, ";"), t.Is(lexer.Punct, "{"), t.Is(lexer.Punct, "}"):
			return
		}
		s.advance()
	}
}

// splitHead separates the collected head tokens into the declared name, an
// optional qualified owner (out-of-class definitions), and the return type.
func splitHead(head []lexer.Token, dtor bool) (name, owner, ret string) {
	if len(head) == 0 || head[len(head)-1].Kind != lexer.Ident {
		return "", "", ""
	}
	name = head[len(head)-1].Text
	rest := head[:len(head)-1]

	var ownerParts []string
	for len(rest) >= 2 && rest[len(rest)-1].Is(lexer.Operator, "::") &&
		rest[len(rest)-2].Kind == lexer.Ident {
		ownerParts = append([]string{rest[len(rest)-2].Text}, ownerParts...)
		rest = rest[:len(rest)-2]
	}
	owner = strings.Join(ownerParts, "::")

	if dtor {
		return "~" + name, owner, ""
	}
	return name, owner, spell(rest)
}

func lastSegment(qualified string) string {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	return qualified
}

// spell renders a token run as canonical-ish type text: single spaces
// between words, pointer/reference/array punctuation attached to the type.
func spell(toks []lexer.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && needSpace(toks[i-1], t) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func needSpace(prev, cur lexer.Token) bool {
	switch cur.Text {
	case "::", "*", "&", "&&", "[", "]", "<", ">", ",":
		return false
	}
	switch prev.Text {
	case "::", "<", "[":
		return false
	}
	return true
}

func isAccessKeyword(t lexer.Token) bool {
	return t.Kind == lexer.Keyword &&
		(t.Text == "public" || t.Text == "protected" || t.Text == "private")
}

func (s *Scanner) emit(ev Event) {
	if s.handler != nil {
		s.handler.HandleEvent(ev)
	}
}

func (s *Scanner) currentClass() string {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].class != "" {
			return s.scopes[i].class
		}
	}
	return ""
}

func (s *Scanner) inClass() bool {
	return s.currentClass() != ""
}

func (s *Scanner) cur() lexer.Token {
	if s.pos < len(s.toks) {
		return s.toks[s.pos]
	}
	return lexer.Token{Kind: lexer.EOF}
}

func (s *Scanner) peek(n int) lexer.Token {
	if s.pos+n < len(s.toks) {
		return s.toks[s.pos+n]
	}
	return lexer.Token{Kind: lexer.EOF}
}

func (s *Scanner) advance() {
	if s.pos < len(s.toks) {
		s.pos++
	}
}

func (s *Scanner) atEnd() bool {
	return s.pos >= len(s.toks) || s.toks[s.pos].Kind == lexer.EOF
}

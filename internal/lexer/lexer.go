package lexer

import (
	"strings"
	"unicode"

	"github.com/dejo1307/cxtract/internal/diag"
)

// Lexer tokenizes one C/C++ translation unit. It is single-pass: a Lexer
// is used for exactly one Tokenize call.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int

	tokens []Token
	diags  []diag.Diagnostic
	macros map[string]string
}

// New creates a lexer for the given source text.
func New(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
		macros: make(map[string]string),
	}
}

// Seed pre-populates the macro table before tokenizing. Seeded values are
// overridden by #define directives found in the source.
func (l *Lexer) Seed(macros map[string]string) {
	for name, value := range macros {
		l.macros[name] = value
	}
}

// Macros returns the object-like macro table collected during Tokenize.
// The table is read-only after Tokenize returns.
func (l *Lexer) Macros() map[string]string {
	return l.macros
}

// Tokenize processes the entire input and returns all tokens plus any
// recovered lexical diagnostics. Malformed literals produce a diagnostic,
// skip to the end of the line, and close the broken statement with a
// synthetic terminator; they never abort the file or swallow what follows.
func (l *Lexer) Tokenize() ([]Token, []diag.Diagnostic) {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.input[l.pos]

		if ch == ':' && l.peek() == ':' {
			l.add(Operator, "::")
			l.advance()
			l.advance()
			continue
		}
		if ch == '/' && (l.peek() == '/' || l.peek() == '*') {
			l.readComment()
			continue
		}

		switch {
		case ch == '"' || ch == '\'':
			l.readLiteral(ch)
		case ch == '#':
			l.readDirective()
		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.readIdentifier()
		case unicode.IsDigit(rune(ch)):
			l.readNumber()
		case isOperator(ch):
			l.readOperator()
		case isPunct(ch):
			l.add(Punct, string(ch))
			l.advance()
		default:
			l.advance()
		}
	}

	l.tokens = append(l.tokens, Token{Kind: EOF, Line: l.line, Column: l.column})
	return l.tokens, l.diags
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) peek() byte {
	if l.pos+1 < len(l.input) {
		return l.input[l.pos+1]
	}
	return 0
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch != ' ' && ch != '\t' && ch != '\r' && ch != '\n' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) readComment() {
	startLine, startCol := l.line, l.column
	start := l.pos

	if l.peek() == '/' {
		for l.pos < len(l.input) && l.input[l.pos] != '\n' {
			l.advance()
		}
		l.emitAt(Comment, l.input[start:l.pos], startLine, startCol)
		return
	}

	// Block comment
	l.advance() // /
	l.advance() // *
	for l.pos < len(l.input) {
		if l.input[l.pos] == '*' && l.peek() == '/' {
			l.advance()
			l.advance()
			l.emitAt(Comment, l.input[start:l.pos], startLine, startCol)
			return
		}
		l.advance()
	}

	// Reached end of file inside the comment.
	l.diags = append(l.diags, diag.Lex(startLine, startCol, "unterminated block comment"))
	l.emitAt(Comment, l.input[start:], startLine, startCol)
}

// readDirective consumes one preprocessor line, honoring backslash
// continuations, and emits it as a single opaque directive token. Object-like
// #define NAME value lines are additionally recorded in the macro table; no
// other expansion is attempted.
func (l *Lexer) readDirective() {
	startLine, startCol := l.line, l.column
	start := l.pos

	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		if l.input[l.pos] == '\\' && l.peek() == '\n' {
			l.advance()
			l.advance()
			continue
		}
		l.advance()
	}

	text := l.input[start:l.pos]
	l.emitAt(Directive, text, startLine, startCol)
	l.recordDefine(text)
}

func (l *Lexer) recordDefine(text string) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(text), "#")
	if !ok {
		return
	}
	rest = strings.TrimSpace(rest)
	rest, ok = strings.CutPrefix(rest, "define")
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return
	}
	rest = strings.TrimSpace(rest)

	nameEnd := 0
	for nameEnd < len(rest) && isIdentByte(rest[nameEnd]) {
		nameEnd++
	}
	if nameEnd == 0 {
		return
	}
	// Function-like macros ("NAME(") are out of scope; only object-like
	// defines enter the table.
	if nameEnd < len(rest) && rest[nameEnd] == '(' {
		return
	}

	name := rest[:nameEnd]
	value := strings.TrimSpace(rest[nameEnd:])
	l.macros[name] = value
}

// readLiteral reads a string or char literal. An unterminated literal is
// reported and skipped to the end of the line.
func (l *Lexer) readLiteral(quote byte) {
	startLine, startCol := l.line, l.column
	var sb strings.Builder
	sb.WriteByte(quote)
	l.advance()

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input):
			sb.WriteByte(ch)
			l.advance()
			sb.WriteByte(l.input[l.pos])
			l.advance()
		case ch == quote:
			sb.WriteByte(ch)
			l.advance()
			kind := String
			if quote == '\'' {
				kind = Char
			}
			l.emitAt(kind, sb.String(), startLine, startCol)
			return
		case ch == '\n':
			l.diags = append(l.diags, diag.Lex(startLine, startCol, "unterminated %s literal", literalName(quote)))
			// The statement never reaches its real ';'; emit one so
			// declaration scanning resynchronizes on the next line.
			l.add(Punct, ";")
			return
		default:
			sb.WriteByte(ch)
			l.advance()
		}
	}

	l.diags = append(l.diags, diag.Lex(startLine, startCol, "unterminated %s literal", literalName(quote)))
	l.add(Punct, ";")
}

func literalName(quote byte) string {
	if quote == '\'' {
		return "char"
	}
	return "string"
}

func (l *Lexer) readIdentifier() {
	startLine, startCol := l.line, l.column
	start := l.pos
	for l.pos < len(l.input) && isIdentByte(l.input[l.pos]) {
		l.advance()
	}

	text := l.input[start:l.pos]
	kind := Ident
	if keywords[text] {
		kind = Keyword
	}
	l.emitAt(kind, text, startLine, startCol)
}

func (l *Lexer) readNumber() {
	startLine, startCol := l.line, l.column
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsDigit(rune(ch)) || ch == '.' || ch == 'x' || ch == 'X' ||
			(ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') ||
			ch == 'u' || ch == 'U' || ch == 'l' || ch == 'L' {
			l.advance()
		} else {
			break
		}
	}
	l.emitAt(Number, l.input[start:l.pos], startLine, startCol)
}

var twoCharOps = map[string]bool{
	"->": true, "==": true, "!=": true, "<=": true, ">=": true,
	"&&": true, "||": true, "++": true, "--": true, "+=": true,
	"-=": true, "*=": true, "/=": true, "<<": true, ">>": true,
}

func (l *Lexer) readOperator() {
	startLine, startCol := l.line, l.column
	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		if twoCharOps[two] {
			l.advance()
			l.advance()
			l.emitAt(Operator, two, startLine, startCol)
			return
		}
	}
	op := string(l.input[l.pos])
	l.advance()
	l.emitAt(Operator, op, startLine, startCol)
}

func (l *Lexer) add(kind Kind, text string) {
	l.emitAt(kind, text, l.line, l.column)
}

func (l *Lexer) emitAt(kind Kind, text string, line, column int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Line: line, Column: column})
}

func isOperator(ch byte) bool {
	return ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '=' ||
		ch == '<' || ch == '>' || ch == '!' || ch == '&' || ch == '|' ||
		ch == '^' || ch == '%' || ch == '~' || ch == '?'
}

func isPunct(ch byte) bool {
	return ch == '{' || ch == '}' || ch == '(' || ch == ')' ||
		ch == '[' || ch == ']' || ch == ';' || ch == ',' ||
		ch == ':' || ch == '.'
}

func isIdentByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

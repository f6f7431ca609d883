package diag

import "fmt"

// Code identifies a diagnostic category.
type Code string

const (
	// CodeLex marks a malformed literal or comment. The lexer recovers by
	// skipping to the end of the line, so these are never fatal.
	CodeLex Code = "lex"
	// CodeUnbalanced marks an unterminated brace or paren run that reached
	// end of file. Fatal for the affected file only.
	CodeUnbalanced Code = "unbalanced-delimiter"
	// CodeTimeout marks a file that exceeded the nesting or size budget.
	// Fatal for the affected file only.
	CodeTimeout Code = "timeout"
)

// Diagnostic records a recoverable problem found while analyzing one file.
// Diagnostics accumulate alongside the (possibly partial) symbol model;
// callers decide whether partial results are acceptable.
type Diagnostic struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line"`
	Column  int    `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	if d.File != "" {
		return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Code, d.Message)
	}
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Code, d.Message)
}

// Lex builds a lex diagnostic at the given position.
func Lex(line, column int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:    CodeLex,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Column:  column,
	}
}

// UnbalancedDelimiterError reports an open delimiter that was never closed
// before end of file. Analysis of the file aborts; sibling files are
// unaffected.
type UnbalancedDelimiterError struct {
	Delim string // the opening delimiter, "{" or "("
	Line  int    // where it was opened
}

func (e *UnbalancedDelimiterError) Error() string {
	return fmt.Sprintf("unbalanced %q opened at line %d reached end of file", e.Delim, e.Line)
}

// Diagnostic converts the error into its diagnostic form.
func (e *UnbalancedDelimiterError) Diagnostic() Diagnostic {
	return Diagnostic{Code: CodeUnbalanced, Message: e.Error(), Line: e.Line}
}

// TimeoutError reports that a file blew the analysis budget, e.g. a deeply
// nested brace bomb or a pathological token count.
type TimeoutError struct {
	Reason string // "nesting depth" or "token count"
	Limit  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis budget exceeded: %s over limit %d", e.Reason, e.Limit)
}

// Diagnostic converts the error into its diagnostic form.
func (e *TimeoutError) Diagnostic() Diagnostic {
	return Diagnostic{Code: CodeTimeout, Message: e.Error()}
}

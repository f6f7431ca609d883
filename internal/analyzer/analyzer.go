// Package analyzer runs the extraction pipeline for translation units:
// text -> tokens -> declaration events -> symbol model, with diagnostics
// accumulated alongside partial results.
package analyzer

import (
	"fmt"
	"os"

	"github.com/dejo1307/cxtract/internal/diag"
	"github.com/dejo1307/cxtract/internal/lexer"
	"github.com/dejo1307/cxtract/internal/scanner"
	"github.com/dejo1307/cxtract/internal/symbols"
)

// DefaultMaxTokens is the per-file token budget. Exceeding it aborts the
// file with a TimeoutError before scanning starts.
const DefaultMaxTokens = 2_000_000

// Options configures one analysis. The macro seed table is read-only and
// may be shared across parallel file analyses.
type Options struct {
	Macros    map[string]string
	MaxDepth  int // brace nesting budget; 0 = scanner.DefaultMaxDepth
	MaxTokens int // token budget; 0 = DefaultMaxTokens
}

// Result is the outcome for one translation unit. Model is always non-nil
// and holds whatever was recognized before a fatal error, if any.
type Result struct {
	File        string            `json:"file"`
	Model       *symbols.Model    `json:"-"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
	Fatal       error             `json:"-"`
}

// AnalyzeSource extracts the symbol model from one translation unit. It is
// a pure function of the source text plus the macro seed table; the file
// name is provenance only, the extension is never required for correctness.
func AnalyzeSource(file, src string, opts Options) Result {
	res := Result{File: file}

	lx := lexer.New(src)
	lx.Seed(opts.Macros)
	toks, diags := lx.Tokenize()
	res.Diagnostics = diags

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if len(toks) > maxTokens {
		err := &diag.TimeoutError{Reason: "token count", Limit: maxTokens}
		res.Fatal = err
		res.Diagnostics = append(res.Diagnostics, err.Diagnostic())
		res.Model = &symbols.Model{File: file, Macros: lx.Macros()}
		res.stampFile()
		return res
	}

	sc := scanner.New(toks, scanner.Options{
		Macros:   lx.Macros(),
		MaxDepth: opts.MaxDepth,
	})
	builder := symbols.NewBuilder(file)
	scanErr := sc.Scan(builder)

	res.Model = builder.Model()
	res.Model.Macros = lx.Macros()

	if scanErr != nil {
		res.Fatal = scanErr
		switch e := scanErr.(type) {
		case *diag.UnbalancedDelimiterError:
			res.Diagnostics = append(res.Diagnostics, e.Diagnostic())
		case *diag.TimeoutError:
			res.Diagnostics = append(res.Diagnostics, e.Diagnostic())
		default:
			res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
				Code:    diag.CodeUnbalanced,
				Message: scanErr.Error(),
			})
		}
	}
	res.stampFile()
	return res
}

// AnalyzeFile reads and analyzes one file. Reading is the only blocking
// operation and happens once, before analysis begins.
func AnalyzeFile(path string, opts Options) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{
			File:  path,
			Model: &symbols.Model{File: path},
			Fatal: fmt.Errorf("reading %s: %w", path, err),
		}
	}
	return AnalyzeSource(path, string(data), opts)
}

func (r *Result) stampFile() {
	for i := range r.Diagnostics {
		if r.Diagnostics[i].File == "" {
			r.Diagnostics[i].File = r.File
		}
	}
}

// Package server exposes the extractor over MCP on the stdio transport.
// Stdout carries JSON-RPC only; all logging goes to stderr.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/cxtract/internal/analyzer"
	"github.com/dejo1307/cxtract/internal/config"
	"github.com/dejo1307/cxtract/internal/signature"
	"github.com/dejo1307/cxtract/internal/symbols"
)

// Server wraps the MCP server and connects it to an analysis session.
type Server struct {
	mcp     *mcp.Server
	session *analyzer.Session
	cfg     *config.Config
}

// New creates a new MCP server wired to the given session.
func New(session *analyzer.Session, cfg *config.Config) (*Server, error) {
	s := &Server{
		session: session,
		cfg:     cfg,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "cxtract",
		Version: "0.1.0",
	}, nil)

	s.mcp = mcpServer
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	log.Println("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerResources adds MCP resources for run artifacts.
func (s *Server) registerResources() {
	// Resource: per-file symbol models
	s.mcp.AddResource(&mcp.Resource{
		URI:         "cxtract://run/models",
		Name:        "Symbol Models",
		Description: "Extracted symbol models for every analyzed file, in JSONL format",
		MIMEType:    "application/jsonl",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		results := s.session.Results()
		if len(results) == 0 {
			return nil, fmt.Errorf("no run available (run analyze_repo first)")
		}
		var buf bytes.Buffer
		for i := range results {
			if err := results[i].Model.WriteJSONL(&buf); err != nil {
				return nil, err
			}
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: buf.String(), MIMEType: "application/jsonl"},
			},
		}, nil
	})

	// Resource: run metadata
	s.mcp.AddResource(&mcp.Resource{
		URI:         "cxtract://run/meta",
		Name:        "Run Metadata",
		Description: "Metadata about the last analysis run, including per-file summaries",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		report := s.session.Report()
		if report == nil {
			return nil, fmt.Errorf("no run available (run analyze_repo first)")
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: string(data), MIMEType: "application/json"},
			},
		}, nil
	})
}

// analyzeRepoArgs are the arguments for the analyze_repo tool.
type analyzeRepoArgs struct {
	RepoPath string `json:"repo_path" jsonschema:"Path to the repository to analyze. Defaults to the configured repo path."`
}

// analyzeFileArgs are the arguments for the analyze_file tool.
type analyzeFileArgs struct {
	Path   string `json:"path,omitempty" jsonschema:"Path to a C/C++ file to analyze"`
	Source string `json:"source,omitempty" jsonschema:"Inline C/C++ source text to analyze instead of a file"`
}

// querySymbolsArgs are the arguments for the query_symbols tool.
type querySymbolsArgs struct {
	Kind string `json:"kind,omitempty" jsonschema:"Filter by entity kind: class, struct, function, method, field, or alias"`
	Name string `json:"name,omitempty" jsonschema:"Filter by name using substring match"`
	File string `json:"file,omitempty" jsonschema:"Filter by file path"`
}

// showEntityArgs are the arguments for the show_entity tool.
type showEntityArgs struct {
	Name         string `json:"name" jsonschema:"required,Entity name to look up (substring match)"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the entity (default 30)"`
}

// symbolRow is one row of a query_symbols response.
type symbolRow struct {
	File   string `json:"file"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Owner  string `json:"owner,omitempty"`
	Detail string `json:"detail,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// registerTools adds MCP tools for analysis, querying, and verification.
func (s *Server) registerTools() {
	// Tool: analyze_repo
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_repo",
		Description: "Analyze every C/C++ file in a repository. Extracts classes, structs, fields, methods, free functions, and type aliases, and writes the run artifacts to disk.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeRepoArgs) (*mcp.CallToolResult, any, error) {
		repoPath := args.RepoPath
		if repoPath == "" {
			repoPath = s.cfg.Repo
		}

		absRepo, err := filepath.Abs(repoPath)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid repo path: %v", err)), nil, nil
		}

		report, err := s.session.Run(ctx, absRepo)
		if err != nil {
			return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil, nil
		}

		if err := s.session.WriteArtifacts(absRepo); err != nil {
			log.Printf("[server] warning: failed to write artifacts: %v", err)
		}

		summary := fmt.Sprintf(
			"Analysis complete.\n\n"+
				"- Repository: %s\n"+
				"- Files: %d\n"+
				"- Entities: %d\n"+
				"- Diagnostics: %d\n"+
				"- Duration: %s\n\n"+
				"Use the cxtract://run/models resource to read the extracted models.",
			report.Repo,
			len(report.Files),
			report.Entities,
			report.Diagnostics,
			report.Duration,
		)

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: summary},
			},
		}, nil, nil
	})

	// Tool: analyze_file
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_file",
		Description: "Analyze a single C/C++ file or inline source text and return its symbol model as JSONL. Does not touch the session state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeFileArgs) (*mcp.CallToolResult, any, error) {
		opts := analyzer.Options{
			Macros:    s.cfg.Macros,
			MaxDepth:  s.cfg.Limits.MaxNestingDepth,
			MaxTokens: s.cfg.Limits.MaxTokens,
		}

		var res analyzer.Result
		switch {
		case args.Source != "":
			res = analyzer.AnalyzeSource("inline", args.Source, opts)
		case args.Path != "":
			res = analyzer.AnalyzeFile(args.Path, opts)
		default:
			return errorResult("either path or source is required"), nil, nil
		}

		if res.Fatal != nil && res.Model.EntityCount() == 0 {
			return errorResult(fmt.Sprintf("analysis failed: %v", res.Fatal)), nil, nil
		}

		var buf bytes.Buffer
		if err := res.Model.WriteJSONL(&buf); err != nil {
			return errorResult(fmt.Sprintf("encoding model: %v", err)), nil, nil
		}
		if len(res.Diagnostics) > 0 {
			buf.WriteString("\nDiagnostics:\n")
			for _, d := range res.Diagnostics {
				buf.WriteString("  " + d.String() + "\n")
			}
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: buf.String()},
			},
		}, nil, nil
	})

	// Tool: query_symbols
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_symbols",
		Description: "Query extracted symbols by kind, name, or file. Returns matching entities as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args querySymbolsArgs) (*mcp.CallToolResult, any, error) {
		results := s.session.Results()
		if len(results) == 0 {
			return errorResult("No symbols available. Run analyze_repo first."), nil, nil
		}

		var rows []symbolRow
		for i := range results {
			rows = append(rows, queryModel(results[i].Model, args)...)
		}

		truncated := false
		total := len(rows)
		if len(rows) > 100 {
			rows = rows[:100]
			truncated = true
		}

		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal results: %v", err)), nil, nil
		}

		text := string(data)
		if truncated {
			text += fmt.Sprintf("\n\n... (showing 100 of %d results, refine your query)", total)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}, nil, nil
	})

	// Tool: verify
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "verify",
		Description: "Compare the extracted models against the configured ground-truth documents and report matched, missing, and extra entities per file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
		if len(s.session.Results()) == 0 {
			return errorResult("No run available. Run analyze_repo first."), nil, nil
		}

		reports, err := s.session.Verify()
		if err != nil {
			return errorResult(fmt.Sprintf("verification failed: %v", err)), nil, nil
		}
		if len(reports) == 0 {
			return errorResult("No ground-truth documents matched any analyzed file."), nil, nil
		}

		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("failed to marshal reports: %v", err)), nil, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(data)},
			},
		}, nil, nil
	})

	// Tool: show_entity
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_entity",
		Description: "Show source code for an extracted entity. Returns the declaration with surrounding context lines.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showEntityArgs) (*mcp.CallToolResult, any, error) {
		report := s.session.Report()
		if report == nil {
			return errorResult("No run available. Run analyze_repo first."), nil, nil
		}
		if args.Name == "" {
			return errorResult("name is required"), nil, nil
		}

		rows := s.matchEntities(args.Name)
		if len(rows) == 0 {
			return errorResult(fmt.Sprintf("No entities matching %q", args.Name)), nil, nil
		}
		if len(rows) > 5 {
			rows = rows[:5]
		}

		contextLines := args.ContextLines
		if contextLines <= 0 {
			contextLines = 30
		}

		var sb strings.Builder
		for i, row := range rows {
			if i > 0 {
				sb.WriteString("\n---\n\n")
			}
			sb.WriteString(fmt.Sprintf("### %s %s\n", row.Kind, row.Name))
			sb.WriteString(fmt.Sprintf("File: %s  Line: %d\n", row.File, row.Line))
			if row.Detail != "" {
				sb.WriteString(fmt.Sprintf("Signature:\n```\n%s\n```\n", row.Detail))
			}
			sb.WriteString("\n")

			absFile := filepath.Join(report.Repo, row.File)
			source, err := readSourceWindow(absFile, row.Line, contextLines)
			if err != nil {
				sb.WriteString(fmt.Sprintf("_Could not read source: %v_\n", err))
				continue
			}
			sb.WriteString(fmt.Sprintf("```cpp\n%s\n```\n", source))
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: sb.String()},
			},
		}, nil, nil
	})
}

// queryModel flattens one model into rows matching the filter.
func queryModel(m *symbols.Model, args querySymbolsArgs) []symbolRow {
	if args.File != "" && !strings.Contains(m.File, args.File) {
		return nil
	}

	match := func(kind, name string) bool {
		if args.Kind != "" && args.Kind != kind {
			return false
		}
		if args.Name != "" && !strings.Contains(name, args.Name) {
			return false
		}
		return true
	}

	var rows []symbolRow
	for _, c := range m.Classes {
		if match(string(c.Kind), c.Name) {
			rows = append(rows, symbolRow{
				File: m.File, Kind: string(c.Kind), Name: c.QualifiedName(), Line: c.Line,
			})
		}
		for _, f := range c.Fields {
			if match("field", f.Name) {
				rows = append(rows, symbolRow{
					File: m.File, Kind: "field", Name: f.Name, Owner: f.Owner,
					Detail: signature.NormalizeType(f.Type) + " " + string(f.Visibility), Line: f.Line,
				})
			}
		}
		for _, fn := range c.Methods {
			if match("method", fn.Name) {
				rows = append(rows, symbolRow{
					File: m.File, Kind: "method", Name: fn.Name, Owner: fn.Owner,
					Detail: signature.Normalize(fn).String(), Line: fn.Line,
				})
			}
		}
	}
	for _, fn := range m.Functions {
		if match("function", fn.Name) {
			rows = append(rows, symbolRow{
				File: m.File, Kind: "function", Name: fn.Name,
				Detail: signature.Normalize(fn).String(), Line: fn.Line,
			})
		}
	}
	for _, a := range m.Aliases {
		if match("alias", a.Name) {
			rows = append(rows, symbolRow{
				File: m.File, Kind: "alias", Name: a.Name, Detail: a.Target, Line: a.Line,
			})
		}
	}
	return rows
}

// matchEntities finds entities by substring across all session models.
func (s *Server) matchEntities(name string) []symbolRow {
	var rows []symbolRow
	for _, res := range s.session.Results() {
		rows = append(rows, queryModel(res.Model, querySymbolsArgs{Name: name})...)
	}
	return rows
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := centerLine - contextLines/2
	if startLine < 1 {
		startLine = 1
	}
	endLine := centerLine + contextLines/2
	if endLine > len(lines) {
		endLine = len(lines)
	}

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		sb.WriteString(fmt.Sprintf("%4d| %s\n", i, lines[i-1]))
	}
	return sb.String(), nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

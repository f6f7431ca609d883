package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dejo1307/cxtract/internal/config"
	"github.com/dejo1307/cxtract/internal/symbols"
	"github.com/dejo1307/cxtract/internal/verify"
)

// Session orchestrates a multi-file extraction run: walk -> analyze in
// parallel -> collect. Each file analysis is independent; the only shared
// inputs are the read-only config and macro seed table.
type Session struct {
	cfg     *config.Config
	results []Result
	report  *RunReport
}

// RunReport is the run-level summary written next to the per-file models.
type RunReport struct {
	RunID       string        `json:"run_id"`
	Repo        string        `json:"repo"`
	GeneratedAt string        `json:"generated_at"`
	Duration    string        `json:"duration"`
	Files       []FileSummary `json:"files"`
	Entities    int           `json:"entities"`
	Diagnostics int           `json:"diagnostics"`
}

// FileSummary is the per-file slice of a RunReport.
type FileSummary struct {
	File        string `json:"file"`
	Classes     int    `json:"classes"`
	Functions   int    `json:"functions"`
	Aliases     int    `json:"aliases"`
	Diagnostics int    `json:"diagnostics"`
	Fatal       string `json:"fatal,omitempty"`
}

// NewSession creates a session with the given config.
func NewSession(cfg *config.Config) *Session {
	return &Session{cfg: cfg}
}

// Config returns the session config.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Results returns the per-file results of the last run, sorted by file.
func (s *Session) Results() []Result {
	return s.results
}

// Report returns the last run report, or nil.
func (s *Session) Report() *RunReport {
	return s.report
}

// Model returns the model for one analyzed file from the last run.
func (s *Session) Model(file string) (*symbols.Model, bool) {
	for i := range s.results {
		if s.results[i].File == file {
			return s.results[i].Model, true
		}
	}
	return nil, false
}

// Run walks the repo and analyzes every source file with a bounded worker
// pool. The context is checked between file pickups; an in-flight file
// finishes before the cancellation takes effect.
func (s *Session) Run(ctx context.Context, repoPath string) (*RunReport, error) {
	start := time.Now()

	if repoPath == "" {
		repoPath = s.cfg.Repo
	}
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	files, err := s.walkRepo(absRepo)
	if err != nil {
		return nil, fmt.Errorf("walking repo: %w", err)
	}
	log.Printf("[session] found %d source files in %s", len(files), absRepo)

	opts := Options{
		Macros:    s.cfg.Macros,
		MaxDepth:  s.cfg.Limits.MaxNestingDepth,
		MaxTokens: s.cfg.Limits.MaxTokens,
	}

	results := make([]Result, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.cfg.Workers
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = AnalyzeFile(filepath.Join(absRepo, files[i]), opts)
				results[i].File = files[i]
				results[i].Model.File = files[i]
			}
		}()
	}

feed:
	for i := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	s.results = results

	report := &RunReport{
		RunID:       uuid.NewString(),
		Repo:        absRepo,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
	for _, r := range results {
		sum := FileSummary{
			File:        r.File,
			Classes:     len(r.Model.Classes),
			Functions:   len(r.Model.Functions),
			Aliases:     len(r.Model.Aliases),
			Diagnostics: len(r.Diagnostics),
		}
		if r.Fatal != nil {
			sum.Fatal = r.Fatal.Error()
		}
		report.Files = append(report.Files, sum)
		report.Entities += r.Model.EntityCount()
		report.Diagnostics += len(r.Diagnostics)
	}
	s.report = report
	log.Printf("[session] analyzed %d files, %d entities, %d diagnostics in %s",
		len(files), report.Entities, report.Diagnostics, report.Duration)
	return report, nil
}

// walkRepo collects relative paths of source files, applying ignore patterns
// and the extension filter.
func (s *Session) walkRepo(repoPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}

		if s.isIgnored(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() && s.cfg.IsSourceFile(relPath) {
			files = append(files, relPath)
		}
		return nil
	})
	return files, err
}

// isIgnored checks whether a path matches any ignore pattern.
func (s *Session) isIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range s.cfg.Ignore {
		if strings.HasSuffix(pattern, "/**") {
			dirPrefix := strings.TrimSuffix(pattern, "/**")
			if relPath == dirPrefix || strings.HasPrefix(relPath, dirPrefix+"/") {
				return true
			}
			if matched, err := filepath.Match(dirPrefix, relPath); err == nil && matched {
				return true
			}
		}

		matched, err := filepath.Match(pattern, relPath)
		if err == nil && matched {
			return true
		}

		if strings.HasPrefix(pattern, "**/") {
			subPattern := strings.TrimPrefix(pattern, "**/")
			matched, err = filepath.Match(subPattern, filepath.Base(relPath))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Verify compares every analyzed file that has a ground-truth document
// against it. Files without ground truth are skipped, not failed.
func (s *Session) Verify() ([]*verify.Report, error) {
	if s.cfg.GroundTruth == "" {
		return nil, fmt.Errorf("no ground_truth directory configured")
	}

	var reports []*verify.Report
	for i := range s.results {
		r := &s.results[i]
		gtPath := filepath.Join(s.cfg.GroundTruth, filepath.Base(r.File)+".yaml")
		exp, err := verify.Load(gtPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		reports = append(reports, verify.Compare(r.Model, exp))
	}
	log.Printf("[session] verified %d of %d files against ground truth", len(reports), len(s.results))
	return reports, nil
}

// WriteArtifacts writes models.jsonl and run.meta.json to the output
// directory under the repo.
func (s *Session) WriteArtifacts(repoPath string) error {
	if s.report == nil {
		return fmt.Errorf("no run to write")
	}
	if repoPath == "" {
		repoPath = s.report.Repo
	}

	outDir := filepath.Join(repoPath, s.cfg.Output.Dir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	modelsPath := filepath.Join(outDir, "models.jsonl")
	f, err := os.Create(modelsPath)
	if err != nil {
		return fmt.Errorf("creating models.jsonl: %w", err)
	}
	for i := range s.results {
		if err := s.results[i].Model.WriteJSONL(f); err != nil {
			f.Close()
			return fmt.Errorf("writing models.jsonl: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing models.jsonl: %w", err)
	}
	log.Printf("[session] wrote %s", modelsPath)

	metaJSON, err := json.MarshalIndent(s.report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}
	metaPath := filepath.Join(outDir, "run.meta.json")
	if err := os.WriteFile(metaPath, metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing run.meta.json: %w", err)
	}
	log.Printf("[session] wrote %s (%d bytes)", metaPath, len(metaJSON))

	return nil
}

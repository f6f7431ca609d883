package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dejo1307/cxtract/internal/config"
	"github.com/dejo1307/cxtract/internal/symbols"
)

// --- helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "test_classes.cpp", classesSource)
	writeFile(t, dir, "test_structs.c", structsSource)
	writeFile(t, dir, "README.md", "# not source\n")
	writeFile(t, dir, "build/gen.cpp", "class Generated {};")
	return dir
}

// --- tests ---

func TestSession_RunWalksAndAnalyzes(t *testing.T) {
	dir := testRepo(t)
	cfg := config.Default()
	cfg.Repo = dir

	s := NewSession(cfg)
	report, err := s.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// README.md is not source and build/ is ignored.
	if len(report.Files) != 2 {
		t.Fatalf("files = %v, want the two source files", report.Files)
	}
	if report.Files[0].File != "test_classes.cpp" || report.Files[1].File != "test_structs.c" {
		t.Errorf("file order = %v, want sorted by path", report.Files)
	}
	if report.Entities == 0 {
		t.Error("report counted no entities")
	}
	if report.Diagnostics != 0 {
		t.Errorf("diagnostics = %d, want none", report.Diagnostics)
	}
	if report.RunID == "" {
		t.Error("report has no run id")
	}
}

func TestSession_ResultsAreQueryableByFile(t *testing.T) {
	dir := testRepo(t)
	cfg := config.Default()

	s := NewSession(cfg)
	if _, err := s.Run(context.Background(), dir); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	m, ok := s.Model("test_structs.c")
	if !ok {
		t.Fatal("model for test_structs.c not found")
	}
	if _, ok := m.Class("Product"); !ok {
		t.Error("Product missing from per-file model")
	}
	if _, ok := s.Model("README.md"); ok {
		t.Error("non-source file has a model")
	}
}

func TestSession_FilesAreIndependent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.cpp", "struct Fine { int n; };")
	writeFile(t, dir, "bad.cpp", "void broken() { int x;")

	cfg := config.Default()
	s := NewSession(cfg)
	report, err := s.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var bad, ok FileSummary
	for _, f := range report.Files {
		switch f.File {
		case "bad.cpp":
			bad = f
		case "ok.cpp":
			ok = f
		}
	}
	if bad.Fatal == "" || bad.Diagnostics == 0 {
		t.Errorf("bad.cpp summary = %+v, want fatal and diagnostic", bad)
	}
	if ok.Fatal != "" || ok.Classes != 1 {
		t.Errorf("ok.cpp summary = %+v, want clean with one class", ok)
	}
}

func TestSession_CancelledContextStopsTheRun(t *testing.T) {
	dir := testRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession(config.Default())
	if _, err := s.Run(ctx, dir); err == nil {
		t.Error("cancelled run returned no error")
	}
}

func TestSession_ConfigMacrosSeedEveryFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "buf.h", "typedef struct { char data[CAP]; } Buf;")

	cfg := config.Default()
	cfg.Macros = map[string]string{"CAP": "512"}
	s := NewSession(cfg)
	if _, err := s.Run(context.Background(), dir); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	m, _ := s.Model("buf.h")
	buf, ok := m.Class("Buf")
	if !ok {
		t.Fatal("Buf not extracted")
	}
	if buf.Fields[0].Type != "char[512]" {
		t.Errorf("field type = %q, want char[512]", buf.Fields[0].Type)
	}
}

func TestSession_WriteArtifacts(t *testing.T) {
	dir := testRepo(t)
	cfg := config.Default()

	s := NewSession(cfg)
	if _, err := s.Run(context.Background(), dir); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := s.WriteArtifacts(dir); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	models, err := os.Open(filepath.Join(dir, cfg.Output.Dir, "models.jsonl"))
	if err != nil {
		t.Fatalf("models.jsonl missing: %v", err)
	}
	defer models.Close()
	if _, err := symbols.ReadJSONL(models); err != nil {
		t.Errorf("models.jsonl unreadable: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, cfg.Output.Dir, "run.meta.json")); err != nil {
		t.Errorf("run.meta.json missing: %v", err)
	}
}

func TestSession_VerifyAgainstGroundTruth(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_structs.c", structsSource)

	gtDir := t.TempDir()
	writeFile(t, gtDir, "test_structs.c.yaml", `
file: test_structs.c
classes:
  - name: Product
    kind: struct
    fields:
      - name: id
        type: int
      - name: name
        type: "char[50]"
      - name: price
        type: float
functions:
  - name: create_product
    returns: "Product*"
    params: [int, "const char*", float]
  - name: print_product
    returns: void
    params: ["const Product*"]
  - name: main
    returns: int
`)

	cfg := config.Default()
	cfg.GroundTruth = gtDir
	s := NewSession(cfg)
	if _, err := s.Run(context.Background(), dir); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	reports, err := s.Verify()
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if !reports[0].Clean() {
		t.Errorf("report not clean: missing %v, extra %v", reports[0].Missing, reports[0].Extra)
	}
}

func TestSession_VerifySkipsFilesWithoutGroundTruth(t *testing.T) {
	dir := testRepo(t)
	cfg := config.Default()
	cfg.GroundTruth = t.TempDir() // empty: no documents

	s := NewSession(cfg)
	if _, err := s.Run(context.Background(), dir); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	reports, err := s.Verify()
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("reports = %v, want none", reports)
	}
}

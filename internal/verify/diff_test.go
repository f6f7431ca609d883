package verify

import (
	"sort"
	"testing"

	"github.com/dejo1307/cxtract/internal/signature"
	"github.com/dejo1307/cxtract/internal/symbols"
)

// --- helpers ---

func productModel() *symbols.Model {
	return &symbols.Model{
		File: "test_structs.c",
		Classes: []symbols.Class{
			{
				Name: "Product",
				Kind: symbols.KindStruct,
				Fields: []symbols.Field{
					{Name: "id", Owner: "Product", Type: "int", Visibility: symbols.Public},
					{Name: "name", Owner: "Product", Type: "char[50]", Visibility: symbols.Public},
					{Name: "price", Owner: "Product", Type: "float", Visibility: symbols.Public},
				},
			},
		},
		Functions: []symbols.Function{
			{Name: "create_product", ReturnType: "Product*", Params: []symbols.Param{
				{Type: "int", Name: "id"},
				{Type: "const char*", Name: "name"},
				{Type: "float", Name: "price"},
			}},
			{Name: "main", ReturnType: "int"},
		},
	}
}

const productGroundTruth = `
file: test_structs.c
classes:
  - name: Product
    kind: struct
    fields:
      - name: id
        type: int
      - name: name
        type: "char [ 50 ]"
      - name: price
        type: float
functions:
  - name: create_product
    returns: "Product *"
    params: [int, "const char*", float]
  - name: main
    returns: int
`

func mustParse(t *testing.T, src string) *ExpectedFile {
	t.Helper()
	exp, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parsing ground truth: %v", err)
	}
	return exp
}

// --- tests ---

func TestCompare_CleanMatch(t *testing.T) {
	report := Compare(productModel(), mustParse(t, productGroundTruth))

	if !report.Clean() {
		t.Fatalf("report not clean: missing %v, extra %v", report.Missing, report.Extra)
	}
	// struct + 3 fields + 2 functions
	if report.Stats.Matched != 6 {
		t.Errorf("matched = %d, want 6", report.Stats.Matched)
	}
	if report.RunID == "" {
		t.Error("report has no run id")
	}
	if report.File != "test_structs.c" {
		t.Errorf("file = %q", report.File)
	}
}

func TestCompare_TypeSpellingDoesNotMatter(t *testing.T) {
	// The ground truth above spells "char [ 50 ]" and "Product *"; the model
	// spells "char[50]" and "Product*". A clean report proves normalization
	// happens on both sides.
	report := Compare(productModel(), mustParse(t, productGroundTruth))
	if len(report.Missing) != 0 {
		t.Errorf("missing = %v, want none", report.Missing)
	}
}

func TestCompare_MissingEntityReported(t *testing.T) {
	exp := mustParse(t, productGroundTruth)
	exp.Functions = append(exp.Functions, ExpectedFunction{
		Name: "destroy_product", Returns: "void", Params: []string{"Product*"},
	})

	report := Compare(productModel(), exp)
	if report.Clean() {
		t.Fatal("report clean despite missing function")
	}
	if len(report.Missing) != 1 || report.Missing[0].Name != "destroy_product" {
		t.Errorf("missing = %v, want destroy_product", report.Missing)
	}
	if len(report.Extra) != 0 {
		t.Errorf("extra = %v, want none", report.Extra)
	}
}

func TestCompare_ExtraEntityReported(t *testing.T) {
	m := productModel()
	m.Functions = append(m.Functions, symbols.Function{Name: "debug_dump", ReturnType: "void"})

	report := Compare(m, mustParse(t, productGroundTruth))
	if len(report.Extra) != 1 || report.Extra[0].Name != "debug_dump" {
		t.Errorf("extra = %v, want debug_dump", report.Extra)
	}
}

func TestCompare_SignatureMismatchIsMissingPlusExtra(t *testing.T) {
	m := productModel()
	m.Functions[1].ReturnType = "void" // main: int -> void

	report := Compare(m, mustParse(t, productGroundTruth))
	if len(report.Missing) != 1 || len(report.Extra) != 1 {
		t.Fatalf("missing %v extra %v, want one each", report.Missing, report.Extra)
	}
	if report.Missing[0].Name != "main" || report.Extra[0].Name != "main" {
		t.Errorf("mismatch not attributed to main: %v / %v", report.Missing, report.Extra)
	}
}

func TestCompare_FunctionIdentityUsesSignatureKey(t *testing.T) {
	m := productModel()
	report := Compare(m, mustParse(t, productGroundTruth))

	want := signature.Key(m.Functions[0])
	found := false
	for _, ref := range report.Matched {
		if ref.Kind == "function" && ref.Name == "create_product" {
			found = true
			if ref.Detail != want {
				t.Errorf("detail = %q, want %q", ref.Detail, want)
			}
		}
	}
	if !found {
		t.Fatal("create_product not in the matched set")
	}
}

func TestCompare_ExpectedDefaultsFollowKind(t *testing.T) {
	m := &symbols.Model{
		File: "d.cpp",
		Classes: []symbols.Class{
			{
				Name:  "Derived",
				Kind:  symbols.KindClass,
				Bases: []symbols.BaseRef{{Name: "Base", Access: symbols.Private}},
				Fields: []symbols.Field{
					{Name: "n", Owner: "Derived", Type: "int", Visibility: symbols.Private},
				},
			},
		},
	}
	// No access or visibility spelled out: class defaults must be applied.
	exp := mustParse(t, `
file: d.cpp
classes:
  - name: Derived
    bases:
      - name: Base
    fields:
      - name: n
        type: int
`)

	report := Compare(m, exp)
	if !report.Clean() {
		t.Errorf("defaults not applied: missing %v, extra %v", report.Missing, report.Extra)
	}
}

func TestCompare_VisibilityIsPartOfIdentity(t *testing.T) {
	m := productModel()
	m.Classes[0].Fields[0].Visibility = symbols.Private // id: public -> private

	report := Compare(m, mustParse(t, productGroundTruth))
	if report.Clean() {
		t.Error("visibility change not detected")
	}
}

func TestCompare_OutputIsDeterministicallySorted(t *testing.T) {
	report := Compare(productModel(), mustParse(t, productGroundTruth))

	sorted := sort.SliceIsSorted(report.Matched, func(i, j int) bool {
		a, b := report.Matched[i], report.Matched[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Detail < b.Detail
	})
	if !sorted {
		t.Errorf("matched set not sorted: %v", report.Matched)
	}
}

func TestCompare_InputsAreNotMutated(t *testing.T) {
	m := productModel()
	exp := mustParse(t, productGroundTruth)
	Compare(m, exp)

	if m.Classes[0].Fields[0].Type != "int" || len(m.Functions) != 2 {
		t.Error("model mutated by comparison")
	}
	if exp.Classes[0].Fields[1].Type != "char [ 50 ]" {
		t.Error("expected file mutated by comparison")
	}
}

package scanner

import (
	"errors"
	"testing"

	"github.com/dejo1307/cxtract/internal/diag"
	"github.com/dejo1307/cxtract/internal/lexer"
)

// --- helpers ---

type collector struct {
	events []Event
}

func (c *collector) HandleEvent(ev Event) {
	c.events = append(c.events, ev)
}

func scan(t *testing.T, src string, opts Options) ([]Event, error) {
	t.Helper()
	lx := lexer.New(src)
	lx.Seed(opts.Macros)
	toks, _ := lx.Tokenize()
	opts.Macros = lx.Macros()
	var c collector
	err := New(toks, opts).Scan(&c)
	return c.events, err
}

func mustScan(t *testing.T, src string) []Event {
	t.Helper()
	events, err := scan(t, src, Options{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func findFunc(t *testing.T, events []Event, name string) *FuncDecl {
	t.Helper()
	for _, ev := range events {
		if ev.Kind == FunctionDecl && ev.Func.Name == name {
			return ev.Func
		}
	}
	t.Fatalf("no FunctionDecl %q in %v", name, events)
	return nil
}

// --- tests ---

func TestScan_ClassHeaderWithBaseAndLabels(t *testing.T) {
	events := mustScan(t, `
class Car : public Vehicle {
public:
    Car(std::string b, int d);
    void display() const override;
private:
    int doors;
};`)

	want := []EventKind{ClassHeader, AccessLabel, FunctionDecl, FunctionDecl, AccessLabel, FieldDecl, ScopeClose}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}

	header := events[0]
	if header.Name != "Car" || header.ClassKind != "class" {
		t.Errorf("header = %q %q", header.Name, header.ClassKind)
	}
	if len(header.Bases) != 1 || header.Bases[0].Name != "Vehicle" || header.Bases[0].Access != "public" {
		t.Errorf("bases = %v, want Vehicle public", header.Bases)
	}

	ctor := findFunc(t, events, "Car")
	if !ctor.Ctor {
		t.Error("Car(...) not flagged as constructor")
	}
	if len(ctor.Params) != 2 || ctor.Params[0].Type != "std::string" || ctor.Params[0].Name != "b" {
		t.Errorf("ctor params = %v", ctor.Params)
	}

	display := findFunc(t, events, "display")
	if display.ReturnType != "void" {
		t.Errorf("display returns %q", display.ReturnType)
	}
	if len(display.Qualifiers) != 2 || display.Qualifiers[0] != "const" || display.Qualifiers[1] != "override" {
		t.Errorf("display qualifiers = %v", display.Qualifiers)
	}

	field := events[5]
	if field.Name != "doors" || field.Type != "int" {
		t.Errorf("field = %q %q", field.Name, field.Type)
	}
}

func TestScan_DestructorWithDefaultedBody(t *testing.T) {
	events := mustScan(t, `
class Vehicle {
public:
    virtual ~Vehicle() = default;
};`)

	dtor := findFunc(t, events, "~Vehicle")
	if !dtor.Dtor {
		t.Error("~Vehicle not flagged as destructor")
	}
	if dtor.ReturnType != "" {
		t.Errorf("destructor return type = %q, want empty", dtor.ReturnType)
	}
	if len(dtor.Qualifiers) != 1 || dtor.Qualifiers[0] != "virtual" {
		t.Errorf("qualifiers = %v, want [virtual]", dtor.Qualifiers)
	}
}

func TestScan_ParenListFollowedBySemicolonIsFunction(t *testing.T) {
	events := mustScan(t, `
struct S {
    int calc(int);
    int value;
    int init = 5;
};`)

	if fn := findFunc(t, events, "calc"); len(fn.Params) != 1 || fn.Params[0].Type != "int" {
		t.Errorf("calc params = %v", fn.Params)
	}

	var fields []Event
	for _, ev := range events {
		if ev.Kind == FieldDecl {
			fields = append(fields, ev)
		}
	}
	if len(fields) != 2 || fields[0].Name != "value" || fields[1].Name != "init" {
		t.Errorf("fields = %v, want value and init", fields)
	}
}

func TestScan_InitializerListBracesDoNotLeakIntoBody(t *testing.T) {
	events := mustScan(t, `
struct P {
    P(int x) : a{x}, b(x) { run(); }
    int a;
    int b;
};`)

	ctor := findFunc(t, events, "P")
	if !ctor.Ctor {
		t.Error("P(int) not flagged as constructor")
	}

	// Both members must still be seen after the constructor.
	var fields []string
	for _, ev := range events {
		if ev.Kind == FieldDecl {
			fields = append(fields, ev.Name)
		}
	}
	if len(fields) != 2 || fields[0] != "a" || fields[1] != "b" {
		t.Errorf("fields after ctor = %v, want [a b]", fields)
	}
	if events[len(events)-1].Kind != ScopeClose {
		t.Errorf("last event = %v, want ScopeClose", events[len(events)-1].Kind)
	}
}

func TestScan_TypedefAnonymousStructNamedByAlias(t *testing.T) {
	events, err := scan(t, `
typedef struct {
    int id;
    char name[MAX_SIZE];
} Product;`, Options{Macros: map[string]string{"MAX_SIZE": "100"}})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if events[0].Kind != ClassHeader || events[0].Name != "Product" || events[0].ClassKind != "struct" {
		t.Fatalf("header = %+v, want struct Product", events[0])
	}

	var name Event
	for _, ev := range events {
		if ev.Kind == FieldDecl && ev.Name == "name" {
			name = ev
		}
	}
	if name.Type != "char[100]" {
		t.Errorf("array field type = %q, want char[100] (macro-substituted)", name.Type)
	}
}

func TestScan_TypedefTagAliasPair(t *testing.T) {
	events := mustScan(t, "typedef struct Node NodeRef;\ntypedef unsigned long size_type;")

	if len(events) != 2 {
		t.Fatalf("events = %v, want two aliases", events)
	}
	if events[0].Kind != AliasDecl || events[0].Name != "NodeRef" || events[0].Type != "Node" {
		t.Errorf("alias 0 = %+v", events[0])
	}
	if events[1].Name != "size_type" || events[1].Type != "unsigned long" {
		t.Errorf("alias 1 = %+v", events[1])
	}
}

func TestScan_UsingAlias(t *testing.T) {
	events := mustScan(t, "using Ptr = std::shared_ptr<Widget>;\nusing namespace std;")

	if len(events) != 1 {
		t.Fatalf("events = %v, want one alias", events)
	}
	if events[0].Kind != AliasDecl || events[0].Name != "Ptr" {
		t.Errorf("alias = %+v", events[0])
	}
}

func TestScan_StructKeywordInDeclarationIsNotAHeader(t *testing.T) {
	events := mustScan(t, "struct Product* create_product(int id);")

	fn := findFunc(t, events, "create_product")
	if fn.ReturnType != "struct Product*" {
		t.Errorf("return type = %q, want struct Product*", fn.ReturnType)
	}
}

func TestScan_ForwardDeclarationEmitsNothing(t *testing.T) {
	events := mustScan(t, "class Widget;\nstruct Node;")
	if len(events) != 0 {
		t.Errorf("events = %v, want none for forward declarations", events)
	}
}

func TestScan_NamespaceIsTransparent(t *testing.T) {
	events := mustScan(t, `
namespace app {
class Engine {
public:
    void start();
};
}`)

	if events[0].Kind != ClassHeader || events[0].Name != "Engine" {
		t.Fatalf("header = %+v, want Engine", events[0])
	}
	if _, err := scan(t, "namespace app { }", Options{}); err != nil {
		t.Errorf("empty namespace: %v", err)
	}
}

func TestScan_OutOfClassDefinitionCarriesOwner(t *testing.T) {
	events := mustScan(t, "void Vehicle::display() const { }")

	fn := findFunc(t, events, "display")
	if fn.Owner != "Vehicle" {
		t.Errorf("owner = %q, want Vehicle", fn.Owner)
	}
	if len(fn.Qualifiers) != 1 || fn.Qualifiers[0] != "const" {
		t.Errorf("qualifiers = %v, want [const]", fn.Qualifiers)
	}
}

func TestScan_TemplatesAndOperatorsAreSkipped(t *testing.T) {
	events := mustScan(t, `
template <typename T>
T max_of(T a, T b) { return a > b ? a : b; }

struct V {
    bool operator==(const V& other) const { return true; }
    int n;
};`)

	for _, ev := range events {
		if ev.Kind == FunctionDecl && ev.Func.Name == "max_of" {
			t.Error("templated function was modeled, want skipped")
		}
	}
	var fields []string
	for _, ev := range events {
		if ev.Kind == FieldDecl {
			fields = append(fields, ev.Name)
		}
	}
	if len(fields) != 1 || fields[0] != "n" {
		t.Errorf("fields = %v, want [n] after operator skip", fields)
	}
}

func TestScan_TemplateArgumentCommaIsNotADeclaratorComma(t *testing.T) {
	events := mustScan(t, `
struct C {
    std::map<int, std::string> table;
};`)

	var field Event
	for _, ev := range events {
		if ev.Kind == FieldDecl {
			field = ev
		}
	}
	if field.Name != "table" {
		t.Fatalf("field = %+v, want table", field)
	}
}

func TestScan_MultiDeclaratorModelsFirstOnly(t *testing.T) {
	events := mustScan(t, `
struct S {
    int a, b, c;
};`)

	var fields []string
	for _, ev := range events {
		if ev.Kind == FieldDecl {
			fields = append(fields, ev.Name)
		}
	}
	if len(fields) != 1 || fields[0] != "a" {
		t.Errorf("fields = %v, want only the first declarator", fields)
	}
}

func TestScan_VoidParameterListMeansNoParams(t *testing.T) {
	events := mustScan(t, "int main(void) { return 0; }")

	fn := findFunc(t, events, "main")
	if len(fn.Params) != 0 {
		t.Errorf("params = %v, want none for (void)", fn.Params)
	}
}

func TestScan_DefaultArgumentRecordedWithMacroSubstitution(t *testing.T) {
	events, err := scan(t, "void resize(int n = LIMIT);",
		Options{Macros: map[string]string{"LIMIT": "64"}})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	fn := findFunc(t, events, "resize")
	if len(fn.Params) != 1 || fn.Params[0].Default != "64" {
		t.Errorf("params = %v, want default 64", fn.Params)
	}
}

func TestScan_UnbalancedBraceIsFatal(t *testing.T) {
	_, err := scan(t, "void f() { int x;", Options{})
	var ub *diag.UnbalancedDelimiterError
	if !errors.As(err, &ub) {
		t.Fatalf("err = %v, want UnbalancedDelimiterError", err)
	}
	if ub.Delim != "{" {
		t.Errorf("delim = %q, want {", ub.Delim)
	}
}

func TestScan_NestingDepthBudgetIsFatal(t *testing.T) {
	src := "void f() "
	for i := 0; i < 8; i++ {
		src += "{"
	}
	for i := 0; i < 8; i++ {
		src += "}"
	}
	_, err := scan(t, src, Options{MaxDepth: 4})
	var to *diag.TimeoutError
	if !errors.As(err, &to) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
}

func TestScan_EventsBeforeFatalErrorSurvive(t *testing.T) {
	events, err := scan(t, `
struct Ok {
    int good;
};
void broken() { int x;`, Options{})
	if err == nil {
		t.Fatal("expected fatal error for unbalanced body")
	}

	if len(events) == 0 || events[0].Kind != ClassHeader || events[0].Name != "Ok" {
		t.Errorf("events before error = %v, want struct Ok first", events)
	}
}

package prompting

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newTestContext builds a resolveContext over a temp madlib dir populated
// from files, with a fixed seed when deterministic is true.
func newTestContext(tb testing.TB, files map[string]string, vars Variables) *resolveContext {
	tb.Helper()
	dir := tb.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			tb.Fatalf("failed to write madlib file %s: %v", name, err)
		}
	}
	return &resolveContext{
		madlibDir:  dir,
		vars:       vars,
		rng:        rand.New(rand.NewPCG(1, 1)),
		store:      NewChoiceStore(0),
		selections: make(SelectionLog),
	}
}

func TestResolveStringPassthrough(t *testing.T) {
	rc := newTestContext(t, nil, nil)

	// Strings without a complete placeholder come back byte-identical.
	for _, src := range []string{
		"",
		"no placeholders here",
		"$",
		"${",
		"${key}",
		"${:x}",
		"${var:}",
		"cost is $19.99 {really}",
	} {
		got, err := rc.resolveString(src)
		if err != nil {
			t.Fatalf("resolveString(%q) error = %v", src, err)
		}
		if got != src {
			t.Errorf("resolveString(%q) = %q, want unchanged", src, got)
		}
	}
}

func TestResolveStringVariables(t *testing.T) {
	vars := Variables{
		"tweet": StringVar("Mint live now"),
		"count": IntVar(3),
		"ratio": FloatVar(0.5),
	}
	rc := newTestContext(t, nil, vars)

	got, err := rc.resolveString("${var:tweet} x${var:count} @ ${var:ratio}")
	if err != nil {
		t.Fatalf("resolveString() error = %v", err)
	}
	want := "Mint live now x3 @ 0.5"
	if got != want {
		t.Errorf("resolveString() = %q, want %q", got, want)
	}
}

func TestResolveStringMissingVariable(t *testing.T) {
	rc := newTestContext(t, nil, nil)

	_, err := rc.resolveString("${var:tweet}")
	if err == nil {
		t.Fatal("resolveString() succeeded with empty variable mapping")
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if !strings.Contains(err.Error(), `"tweet"`) || !strings.Contains(err.Error(), "${var:tweet}") {
		t.Errorf("error %q should name the key and the placeholder", err)
	}
}

func TestResolveStringUnsupportedPrefix(t *testing.T) {
	rc := newTestContext(t, nil, nil)

	_, err := rc.resolveString("${env:HOME}")
	if err == nil {
		t.Fatal("resolveString() accepted unsupported prefix")
	}
	if !strings.Contains(err.Error(), `"env"`) || !strings.Contains(err.Error(), "${env:HOME}") {
		t.Errorf("error %q should name the prefix and the source string", err)
	}
}

func TestResolveStringNoRescan(t *testing.T) {
	// A substituted value containing placeholder syntax must not expand.
	vars := Variables{"a": StringVar("${var:b}"), "b": StringVar("boom")}
	rc := newTestContext(t, nil, vars)

	got, err := rc.resolveString("${var:a}")
	if err != nil {
		t.Fatalf("resolveString() error = %v", err)
	}
	if got != "${var:b}" {
		t.Errorf("resolveString() = %q, want literal ${var:b}", got)
	}
}

func TestResolveStringMadlibLogsSelections(t *testing.T) {
	rc := newTestContext(t, map[string]string{
		"topic.json": `["Topic A", "Topic B"]`,
	}, nil)

	got, err := rc.resolveString("Topic: ${madlib:topic}")
	if err != nil {
		t.Fatalf("resolveString() error = %v", err)
	}
	chosen := strings.TrimPrefix(got, "Topic: ")
	if chosen != "Topic A" && chosen != "Topic B" {
		t.Fatalf("resolveString() = %q, want one of the topic entries", got)
	}
	if !reflect.DeepEqual(rc.selections["topic"], []string{chosen}) {
		t.Errorf("selections = %v, want [%q] under topic", rc.selections, chosen)
	}
}

func TestResolveStringMadlibKeyWithExtension(t *testing.T) {
	rc := newTestContext(t, map[string]string{
		"mood.json": `["Calm"]`,
	}, nil)

	got, err := rc.resolveString("${madlib:mood.json}")
	if err != nil {
		t.Fatalf("resolveString() error = %v", err)
	}
	if got != "Calm" {
		t.Errorf("resolveString() = %q, want Calm", got)
	}
	if !reflect.DeepEqual(rc.selections["mood.json"], []string{"Calm"}) {
		t.Errorf("selections logged under %v, want raw key mood.json", rc.selections)
	}
}

func TestResolveValuePreservesShape(t *testing.T) {
	vars := Variables{"name": StringVar("CL8Y")}
	rc := newTestContext(t, nil, vars)

	doc := Object{
		"type":  String("text"),
		"title": String("hello ${var:name}"),
		"tags":  Array{String("${var:name}"), String("static")},
		"meta": Object{
			"count":   Number("3"),
			"ratio":   Number("0.25"),
			"enabled": Bool(true),
			"extra":   Null{},
		},
	}

	got, err := rc.resolveValue(doc)
	if err != nil {
		t.Fatalf("resolveValue() error = %v", err)
	}
	want := Object{
		"type":  String("text"),
		"title": String("hello CL8Y"),
		"tags":  Array{String("CL8Y"), String("static")},
		"meta": Object{
			"count":   Number("3"),
			"ratio":   Number("0.25"),
			"enabled": Bool(true),
			"extra":   Null{},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolveValue() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveValueSetCollapsesDuplicates(t *testing.T) {
	vars := Variables{"a": StringVar("same"), "b": StringVar("same")}
	rc := newTestContext(t, nil, vars)

	got, err := rc.resolveValue(Set{String("${var:a}"), String("${var:b}"), String("other")})
	if err != nil {
		t.Fatalf("resolveValue() error = %v", err)
	}
	set, ok := got.(Set)
	if !ok {
		t.Fatalf("resolveValue() returned %T, want Set", got)
	}
	members := make(map[string]struct{})
	for _, elem := range set {
		members[string(elem.(String))] = struct{}{}
	}
	if len(set) != 2 || len(members) != 2 {
		t.Errorf("resolveValue() set = %v, want exactly {same, other}", set)
	}
}

func TestResolveValueFailureReturnsNothing(t *testing.T) {
	rc := newTestContext(t, nil, nil)

	got, err := rc.resolveValue(Object{
		"ok":  String("fine"),
		"bad": Array{String("${var:missing}")},
	})
	if err == nil {
		t.Fatal("resolveValue() succeeded with missing variable")
	}
	if got != nil {
		t.Errorf("resolveValue() = %v, want nil on failure", got)
	}
}

func TestResolveDeterministicWithSeed(t *testing.T) {
	files := map[string]string{
		"topic.json": `["Topic A", "Topic B", "Topic C"]`,
		"mood.json":  `["Calm", "Hype", "Wry"]`,
	}
	run := func() (string, SelectionLog) {
		rc := newTestContext(t, files, nil)
		rc.rng = rand.New(rand.NewPCG(42, 42))
		got, err := rc.resolveString("${madlib:topic} / ${madlib:mood} / ${madlib:topic}")
		if err != nil {
			t.Fatalf("resolveString() error = %v", err)
		}
		return got, rc.selections
	}

	firstText, firstLog := run()
	secondText, secondLog := run()
	if firstText != secondText {
		t.Errorf("seeded runs differ: %q vs %q", firstText, secondText)
	}
	if !reflect.DeepEqual(firstLog, secondLog) {
		t.Errorf("seeded selection logs differ: %v vs %v", firstLog, secondLog)
	}
	if len(firstLog["topic"]) != 2 || len(firstLog["mood"]) != 1 {
		t.Errorf("selection log draw counts = %v, want 2 topic and 1 mood", firstLog)
	}
}

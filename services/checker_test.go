package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildRegistry(t *testing.T) {
	settings := testSettings(t)

	reg, err := BuildRegistry(settings, []string{"textual", "xmlwf"})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if len(reg.Checkers()) != 2 {
		t.Fatalf("got %d checkers, want 2", len(reg.Checkers()))
	}

	if !reg.Checkers()[0].Capabilities.Has(CapFileText) {
		t.Error("textual checker should have the file-text capability")
	}
	if !reg.Checkers()[1].Capabilities.Has(CapFileXML) {
		t.Error("xmlwf checker should have the file-xml capability")
	}
}

func TestBuildRegistryFailsFast(t *testing.T) {
	settings := testSettings(t)

	if _, err := BuildRegistry(settings, []string{"textual", "nosuch"}); err == nil {
		t.Error("an unknown checker name must refuse the build")
	}

	// extnits listed without a binary configured is a startup error, not a
	// silent skip.
	settings.NitsBinary = ""
	if _, err := BuildRegistry(settings, []string{"extnits"}); err == nil {
		t.Error("extnits without a binary must refuse the build")
	}

	settings.NitsBinary = "/usr/bin/true"
	if _, err := BuildRegistry(settings, []string{"extnits"}); err != nil {
		t.Errorf("extnits with a binary should build: %v", err)
	}
}

func TestTextualChecker(t *testing.T) {
	checker := &TextualChecker{MaxLineLength: 72}

	clean, err := checker.CheckFragmentText("A short line.\nAnother short line.\n")
	if err != nil {
		t.Fatal(err)
	}
	if clean.Passed == nil || !*clean.Passed {
		t.Errorf("clean fragment failed: %+v", clean)
	}

	long, err := checker.CheckFragmentText(strings.Repeat("x", 100) + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if long.Passed == nil || !*long.Passed {
		t.Error("long lines are warnings, not failures")
	}
	if len(long.Warnings) == 0 {
		t.Error("expected a long-line warning")
	}
	if long.Items["long_lines"] != 1 {
		t.Errorf("long_lines item = %v, want 1", long.Items["long_lines"])
	}

	dirty, err := checker.CheckFragmentText("ok\nbad\x07line\n")
	if err != nil {
		t.Fatal(err)
	}
	if dirty.Passed == nil || *dirty.Passed {
		t.Error("control characters must fail the check")
	}
}

func TestTextualCheckerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft-example-a-00.txt")
	if err := os.WriteFile(path, []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	checker := &TextualChecker{}
	res, err := checker.CheckFileText(path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed == nil || !*res.Passed {
		t.Errorf("result = %+v", res)
	}
	if res.Items["lines"] != 2 {
		t.Errorf("lines item = %v, want 2", res.Items["lines"])
	}
}

func TestXMLWellFormedChecker(t *testing.T) {
	checker := &XMLWellFormedChecker{}

	good, err := checker.CheckFragmentXML("<rfc><front><title>T</title></front></rfc>")
	if err != nil {
		t.Fatal(err)
	}
	if good.Passed == nil || !*good.Passed {
		t.Errorf("well-formed XML failed: %+v", good)
	}

	bad, err := checker.CheckFragmentXML("<rfc><front></rfc>")
	if err != nil {
		t.Fatal(err)
	}
	if bad.Passed == nil || *bad.Passed {
		t.Error("mismatched tags must fail")
	}
	if len(bad.Errors) == 0 {
		t.Error("expected a parse error message")
	}
}

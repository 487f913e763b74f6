package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestImportsUnder(t *testing.T) {
	pred := ImportsUnder("internal/core", "/internal/adapters/")
	cases := []struct {
		in   string
		want bool
	}{
		{"nexonsite/internal/core", true},
		{"nexonsite/internal/adapters/site", true},
		{"nexonsite/internal/corelib", false},
		{"nexonsite/internal/livedata", false},
		{"other/internal/core", false},
	}
	for _, c := range cases {
		if got := pred(c.in); got != c.want {
			t.Fatalf("ImportsUnder(%q)=%v want %v", c.in, got, c.want)
		}
	}
	if !InternalImportForbidden("nexonsite/internal/x") || InternalImportForbidden("nexonsite/pkg/domain") {
		t.Fatalf("InternalImportForbidden predicate mismatch")
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.go", "package x\nimport _ \"nexonsite/internal/core\"\n")
	write("b.go", "package x\nimport \"fmt\"\nvar _ = fmt.Sprint\n")
	write("c_test.go", "package x\nimport _ \"nexonsite/internal/adapters/site\"\n")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "nexonsite/internal/core (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	write("broken.go", "package")
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var c captureFatal
	failIfViolations(&c, "reason", nil)
	if c.msg != "" {
		t.Fatalf("unexpected failure %q", c.msg)
	}
	failIfViolations(&c, "reason", []string{"x"})
	if c.msg == "" {
		t.Fatalf("expected failure")
	}
}

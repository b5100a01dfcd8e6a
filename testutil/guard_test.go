package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestBatchImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"tcrkp/internal/infra/blob/s3", true},
		{"tcrkp/internal/jobs", true},
		{"tcrkp/internal/driver", true},
		{"tcrkp/cmd/tcrkp", true},
		{"tcrkp/internal/network", false},
		{"tcrkp/internal/species", false},
		{"go.uber.org/zap", false},
	}
	for _, c := range cases {
		if got := BatchImportForbidden(c.in); got != c.want {
			t.Fatalf("BatchImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestProcessImportForbidden(t *testing.T) {
	for in, want := range map[string]bool{"os/exec": true, "net/http": true, "os": false, "net/url": false} {
		if got := ProcessImportForbidden(in); got != want {
			t.Fatalf("ProcessImportForbidden(%q)=%v want %v", in, got, want)
		}
	}
	pred := Any(ProcessImportForbidden, BatchImportForbidden)
	if !pred("tcrkp/internal/jobs") || !pred("os/exec") || pred("fmt") {
		t.Fatal("Any did not combine predicates")
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	test := []byte("package tmp\nimport \"os/exec\"\nvar _ = exec.Command")
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), test, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, ProcessImportForbidden, "test files are ignored")
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport (\n\t\"os/exec\"\n\t\"tcrkp/internal/jobs\"\n)\n")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, Any(ProcessImportForbidden, BatchImportForbidden))
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 2 {
		t.Fatalf("want 2 violations, got %v", viols)
	}

	var r recorder
	failIfDirectViolations(&r, "layering", viols)
	if r.msg == "" {
		t.Fatal("expected failure message")
	}
	r = recorder{}
	failIfDirectViolations(&r, "layering", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure: %s", r.msg)
	}

	if _, err := directImportViolations(filepath.Join(dir, "missing"), BatchImportForbidden); err == nil {
		t.Fatal("expected error for missing dir")
	}
	bad := t.TempDir()
	if err := os.WriteFile(filepath.Join(bad, "y.go"), []byte("package"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := directImportViolations(bad, BatchImportForbidden); err == nil {
		t.Fatal("expected parse error")
	}
}

package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"modwire/internal/javasrc"
	"modwire/internal/provision"
	"modwire/internal/txn"
)

func TestEveryBuiltinKindHasTemplate(t *testing.T) {
	l := NewLoader("", zap.NewNop())
	for name, k := range provision.Builtin() {
		out, err := l.Render(k.Template, Data{Package: "com.acme", ClassName: "Thing", Path: "thing", ServiceName: "ThingService", ModuleName: "com.acme"})
		if err != nil {
			t.Fatalf("kind %s: %v", name, err)
		}
		if javasrc.QualifiedType(out) != "com.acme.Thing" {
			t.Fatalf("kind %s renders %q", name, javasrc.QualifiedType(out))
		}
	}
	names, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	if len(names) != len(provision.Builtin())+1 {
		t.Fatalf("unexpected template count %d", len(names))
	}
}

func begin(t *testing.T) (*txn.Tx, string) {
	t.Helper()
	root := t.TempDir()
	tx, err := txn.Begin(root, zap.NewNop())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return tx, root
}

func TestGenerateRegisteringKind(t *testing.T) {
	tx, root := begin(t)
	src := filepath.Join(root, "src", "main", "java")
	k, _ := provision.Builtin().Lookup("pre-startup")
	res, err := NewLoader("", nil).Generate(tx, Request{Kind: k, ClassName: "Boot", Package: "com.acme.app", SourceRoot: src})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].Path != filepath.Join(src, "com", "acme", "app", "Boot.java") {
		t.Fatalf("files %+v", res.Files)
	}
	if len(res.Facts) != 1 || res.Facts[0].Implementation != "com.acme.app.Boot" || res.Facts[0].Interface != k.Interface {
		t.Fatalf("facts %+v", res.Facts)
	}
	text, _, _ := tx.Read(res.Files[0].Path)
	if !strings.Contains(text, "implements IGuicePreStartup<Boot>") {
		t.Fatalf("rendered %q", text)
	}
	if _, err := os.Stat(res.Files[0].Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Generate must only stage")
	}
}

func TestGenerateRestServiceCompanion(t *testing.T) {
	tx, root := begin(t)
	k, _ := provision.Builtin().Lookup("rest-service")
	res, err := NewLoader("", nil).Generate(tx, Request{Kind: k, ClassName: "Orders", Package: "com.acme", SourceRoot: root})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Facts) != 0 {
		t.Fatalf("rest-service registers nothing, got %+v", res.Facts)
	}
	if len(res.Files) != 2 || res.Files[1].ClassName != "com.acme.services.OrdersService" {
		t.Fatalf("files %+v", res.Files)
	}
	text, _, _ := tx.Read(res.Files[0].Path)
	if !strings.Contains(text, `@Path("orders")`) || !strings.Contains(text, "import com.acme.services.OrdersService;") {
		t.Fatalf("resource %q", text)
	}
	impl, _, _ := tx.Read(res.Files[1].Path)
	if javasrc.PackageOf(impl) != "com.acme.services" {
		t.Fatalf("impl package %q", javasrc.PackageOf(impl))
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	tx, root := begin(t)
	p := filepath.Join(root, "com", "acme", "Boot.java")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	k, _ := provision.Builtin().Lookup("module")
	_, err := NewLoader("", nil).Generate(tx, Request{Kind: k, ClassName: "Boot", Package: "com.acme", SourceRoot: root})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if len(tx.Changes()) != 0 {
		t.Fatalf("nothing may be staged")
	}
}

func TestGenerateValidatesNames(t *testing.T) {
	tx, root := begin(t)
	k, _ := provision.Builtin().Lookup("job")
	for _, req := range []Request{
		{Kind: k, ClassName: "9Bad", Package: "com.acme", SourceRoot: root},
		{Kind: k, ClassName: "Good", Package: "", SourceRoot: root},
		{Kind: k, ClassName: "Good", Package: "com..acme", SourceRoot: root},
	} {
		if _, err := NewLoader("", nil).Generate(tx, req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}
}

func TestLoaderPrefersProjectTemplates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.java.tmpl"), []byte("package {{.Package}};\nclass {{.ClassName}} {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(dir, nil)
	out, err := l.Render("custom.java.tmpl", Data{Package: "p", ClassName: "C"})
	if err != nil || out != "package p;\nclass C {}\n" {
		t.Fatalf("Render: %q %v", out, err)
	}
	if _, err := l.Render("job.java.tmpl", Data{Package: "p", ClassName: "C"}); err != nil {
		t.Fatalf("embedded fallback: %v", err)
	}
	if _, err := l.Load("missing.java.tmpl"); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

package registrar

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"modwire/internal/descriptor"
	"modwire/internal/meta"
	"modwire/internal/provision"
	"modwire/internal/txn"
	"modwire/internal/walkwalk"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const iface = "com.guicedee.guicedinjection.interfaces.IGuiceModule"

type project struct {
	t      *testing.T
	root   string
	layout meta.Layout
}

func newProject(t *testing.T, descriptorText string) *project {
	t.Helper()
	root := t.TempDir()
	l, err := meta.ResolveLayout(root, meta.Overrides{})
	require.NoError(t, err)
	p := &project{t: t, root: root, layout: l}
	if descriptorText != "" {
		p.write("src/main/java/module-info.java", descriptorText)
	}
	return p
}

func (p *project) write(rel, content string) {
	p.t.Helper()
	abs := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(p.t, os.WriteFile(abs, []byte(content), 0o644))
}

func (p *project) read(rel string) string {
	p.t.Helper()
	b, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(rel)))
	require.NoError(p.t, err)
	return string(b)
}

func (p *project) registrar(mod func(*Options)) *Registrar {
	opt := Options{Layout: p.layout, Walk: walkwalk.DefaultOptions(), Logger: zap.NewNop()}
	if mod != nil {
		mod(&opt)
	}
	return New(opt)
}

const manifestRel = "src/main/resources/META-INF/services/" + iface

func TestRegisterWritesBothProjections(t *testing.T) {
	p := newProject(t, "module com.acme.app {\n\trequires a.b;\n}\n")
	rep, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "com.acme.app.AppModule"})
	require.NoError(t, err)
	require.True(t, rep.Changed())
	assert.NotEmpty(t, rep.TxID)
	require.Len(t, rep.Files, 2)
	assert.Equal(t, Created, rep.Files[0].Outcome)
	assert.Equal(t, KindManifest, rep.Files[0].Kind)
	assert.Equal(t, Inserted, rep.Files[1].Outcome)

	assert.Equal(t, "com.acme.app.AppModule", p.read(manifestRel))
	assert.Equal(t, "module com.acme.app {\n\trequires a.b;\n\tprovides "+iface+" with com.acme.app.AppModule;\n}\n",
		p.read("src/main/java/module-info.java"))
}

func TestRegisterTwiceIsNoOp(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	r := p.registrar(nil)
	f := provision.Fact{Interface: iface, Implementation: "a.B"}
	_, err := r.Register(context.Background(), f)
	require.NoError(t, err)
	before := p.read("src/main/java/module-info.java")

	j1, err := txn.LoadJournal(p.root)
	require.NoError(t, err)

	rep, err := r.Register(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, rep.Changed())
	assert.Empty(t, rep.TxID)
	assert.Equal(t, before, p.read("src/main/java/module-info.java"))

	j2, err := txn.LoadJournal(p.root)
	require.NoError(t, err)
	assert.Equal(t, j1.ID, j2.ID, "a no-op must not create a new undo entry")
}

func TestRegisterAppendsToExisting(t *testing.T) {
	p := newProject(t, "module m { provides "+iface+" with a.A; }")
	p.write(manifestRel, "a.A\n\n")
	rep, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "b.B"})
	require.NoError(t, err)
	assert.Equal(t, Appended, rep.Files[0].Outcome)
	assert.Equal(t, Appended, rep.Files[1].Outcome)
	assert.Equal(t, "a.A\nb.B", p.read(manifestRel))
	assert.Equal(t, "module m { provides "+iface+" with a.A,b.B; }", p.read("src/main/java/module-info.java"))
}

func TestRegisterMalformedWritesNothing(t *testing.T) {
	p := newProject(t, "module m { provides "+iface+" with a.A")
	_, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "b.B"})
	require.ErrorIs(t, err, descriptor.ErrMalformedDescriptor)
	_, statErr := os.Stat(filepath.Join(p.root, filepath.FromSlash(manifestRel)))
	assert.True(t, os.IsNotExist(statErr), "manifest must not be written when the descriptor is malformed")
}

func TestRegisterDryRun(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	rep, err := p.registrar(func(o *Options) { o.DryRun = true }).Register(context.Background(),
		provision.Fact{Interface: iface, Implementation: "a.B"})
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	require.Len(t, rep.Diffs, 2)
	assert.Contains(t, rep.Diffs[0].Patch, "--- /dev/null")
	assert.Contains(t, rep.Diffs[1].Patch, "+\tprovides "+iface+" with a.B;")
	assert.Equal(t, "module m {\n}\n", p.read("src/main/java/module-info.java"))
	_, err = os.Stat(filepath.Join(p.root, txn.StateDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestRegisterSequentialFactsShareText(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	_, err := p.registrar(nil).Register(context.Background(),
		provision.Fact{Interface: iface, Implementation: "a.A"},
		provision.Fact{Interface: iface, Implementation: "b.B"},
		provision.Fact{Interface: "com.x.IHook", Implementation: "c.C"},
	)
	require.NoError(t, err)
	assert.Equal(t, "module m {\n\tprovides "+iface+" with a.A,b.B;\n\tprovides com.x.IHook with c.C;\n}\n",
		p.read("src/main/java/module-info.java"))
	assert.Equal(t, "a.A\nb.B", p.read(manifestRel))
}

func TestRegisterWithoutDescriptor(t *testing.T) {
	p := newProject(t, "")
	rep, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "a.B"})
	require.NoError(t, err)
	assert.True(t, rep.NoDescriptor)
	assert.Equal(t, "a.B", p.read(manifestRel))
}

func TestRegisterIncludeTests(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	p.write("src/test/java/module-info.java", "open module m.test {\n}\n")
	_, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "a.B"})
	require.NoError(t, err)
	assert.Equal(t, "open module m.test {\n}\n", p.read("src/test/java/module-info.java"))

	_, err = p.registrar(func(o *Options) { o.IncludeTests = true }).Register(context.Background(),
		provision.Fact{Interface: iface, Implementation: "a.B"})
	require.NoError(t, err)
	assert.Contains(t, p.read("src/test/java/module-info.java"), "provides "+iface+" with a.B;")
	assert.Equal(t, "a.B", p.read("src/test/resources/META-INF/services/"+iface))
}

func TestRegisterRejectsInvalidFact(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	_, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "a b"})
	require.Error(t, err)
}

func TestRegisterHonorsCancelledContext(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.registrar(nil).Register(ctx, provision.Fact{Interface: iface, Implementation: "a.B"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheckFindsDrift(t *testing.T) {
	p := newProject(t, strings.Join([]string{
		"import " + iface + ";",
		"module com.acme {",
		"\tprovides IGuiceModule with com.acme.AppModule, com.acme.Ghost;",
		"}",
		"",
	}, "\n"))
	p.write("src/main/java/com/acme/AppModule.java", "package com.acme;\npublic class AppModule {}\n")
	p.write(manifestRel, "com.acme.AppModule\ncom.acme.Orphan\n")
	p.write("lib/src/main/java/module-info.java", "module lib { provides com.x.IHook with ")

	findings, err := p.registrar(nil).Check(context.Background())
	require.NoError(t, err)

	var kinds []string
	for _, f := range findings {
		kinds = append(kinds, f.Kind+" "+f.Implementation)
	}
	assert.Equal(t, []string{
		"malformed-descriptor ",
		"missing-manifest-entry com.acme.Ghost",
		"unknown-class com.acme.Ghost",
		"missing-provides com.acme.Orphan",
	}, kinds)
	assert.Equal(t, "lib/src/main/java/module-info.java", findings[0].Path)
	assert.Equal(t, 3, findings[1].Line)
	assert.Contains(t, findings[3].String(), "lists com.acme.Orphan")
}

func TestCheckCleanProject(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	_, err := p.registrar(nil).Register(context.Background(), provision.Fact{Interface: iface, Implementation: "a.B"})
	require.NoError(t, err)
	p.write("src/main/java/a/B.java", "package a;\nclass B {}\n")

	findings, err := p.registrar(nil).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCheckResolvesImportedNames(t *testing.T) {
	p := newProject(t, strings.Join([]string{
		"import com.acme.app.AppModule;",
		"import com.x.IFoo;",
		"module com.acme.app {",
		"\tprovides IFoo with AppModule;",
		"}",
		"",
	}, "\n"))
	p.write("src/main/java/com/acme/app/AppModule.java", "package com.acme.app;\npublic class AppModule {}\n")
	p.write("src/main/resources/META-INF/services/com.x.IFoo", "com.acme.app.AppModule\n")

	findings, err := p.registrar(nil).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findings)

	views, err := p.registrar(nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].Provides, 1)
	assert.Equal(t, "com.x.IFoo", views[0].Provides[0].Interface)
	assert.Equal(t, []string{"com.acme.app.AppModule"}, views[0].Provides[0].Impls)
}

func TestListSkipsTestDescriptors(t *testing.T) {
	p := newProject(t, "module m {\n}\n")
	p.write("src/test/java/module-info.java", "module m.test {\n}\n")
	views, err := p.registrar(nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "m", views[0].Name)

	views, err = p.registrar(func(o *Options) { o.IncludeTests = true; o.Concurrency = 1 }).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

package provision

import (
	"errors"
	"testing"
)

func TestNewFactJoinsPackage(t *testing.T) {
	f := NewFact("IFoo", "com.x", "Y")
	if f.Implementation != "com.x.Y" {
		t.Fatalf("impl got %q", f.Implementation)
	}
	if g := NewFact("IFoo", "", "Y"); g.Implementation != "Y" {
		t.Fatalf("default package impl got %q", g.Implementation)
	}
	if f.ServiceFile() != "META-INF/services/IFoo" {
		t.Fatalf("service file got %q", f.ServiceFile())
	}
}

func TestFactValidate(t *testing.T) {
	if err := (Fact{Interface: "IFoo", Implementation: "com.x.Y"}).Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := (Fact{Interface: "I Foo", Implementation: ""}).Validate(); err == nil {
		t.Fatalf("expected error for bad names")
	}
}

func TestBuiltinLookup(t *testing.T) {
	tab := Builtin()
	k, err := tab.Lookup("Pre-Startup")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if k.Interface != "com.guicedee.guicedinjection.interfaces.IGuicePreStartup" {
		t.Fatalf("interface got %q", k.Interface)
	}
	if !k.Registers() {
		t.Fatalf("pre-startup should register")
	}
	rest, _ := tab.Lookup("rest-service")
	if rest.Registers() {
		t.Fatalf("rest-service has no service interface")
	}
	if _, err := tab.Lookup("nope"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestMergeOverridesAndExtends(t *testing.T) {
	base := Builtin()
	merged := base.Merge(map[string]Kind{
		"Job":      {Interface: "com.acme.IJob"},
		"my-thing": {Interface: "com.acme.IThing", Template: "thing.java.tmpl"},
	})
	job, _ := merged.Lookup("job")
	if job.Interface != "com.acme.IJob" || job.Template != "job.java.tmpl" {
		t.Fatalf("override lost fields: %+v", job)
	}
	thing, err := merged.Lookup("my-thing")
	if err != nil || thing.Name != "my-thing" {
		t.Fatalf("added kind missing: %+v %v", thing, err)
	}
	if orig, _ := base.Lookup("job"); orig.Interface != "" {
		t.Fatalf("Merge mutated receiver")
	}
}

func TestForInterface(t *testing.T) {
	ks := Builtin().ForInterface("com.guicedee.guicedinjection.interfaces.IGuiceModule")
	if len(ks) != 1 || ks[0].Name != "module" {
		t.Fatalf("ForInterface got %+v", ks)
	}
}

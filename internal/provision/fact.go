// Package provision defines the provision fact (extension-point interface plus
// implementation) and the table that maps scaffolding kinds to interfaces.
package provision

import (
	"fmt"

	"modwire/internal/validate"
)

// Fact states that Implementation satisfies the extension point Interface.
// The same fact is projected into the module descriptor (a provides
// statement) and into the service manifest (a line).
type Fact struct {
	Interface      string `json:"interface" yaml:"interface" toml:"interface"`
	Implementation string `json:"implementation" yaml:"implementation" toml:"implementation"`
}

// NewFact builds a fact from an interface name and an implementation that is
// given as a package plus simple class name.
func NewFact(iface, pkg, class string) Fact {
	impl := class
	if pkg != "" {
		impl = pkg + "." + class
	}
	return Fact{Interface: iface, Implementation: impl}
}

// Validate checks both names are well-formed qualified identifiers.
func (f Fact) Validate() error {
	err := validate.All(
		func() error { return validate.QualifiedName(f.Interface) },
		func() error { return validate.QualifiedName(f.Implementation) },
	)
	if err != nil {
		return fmt.Errorf("invalid provision %s: %w", f, err)
	}
	return nil
}

// ServiceFile is the manifest file name for the fact's interface, relative to
// the resources root.
func (f Fact) ServiceFile() string {
	return "META-INF/services/" + f.Interface
}

func (f Fact) String() string {
	return f.Interface + " with " + f.Implementation
}

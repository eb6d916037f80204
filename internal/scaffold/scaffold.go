// Package scaffold renders new Java classes from templates and stages them
// in a transaction, returning the provision facts the new classes need.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"modwire/internal/javasrc"
	"modwire/internal/logging"
	"modwire/internal/provision"
	"modwire/internal/textutil"
	"modwire/internal/txn"
	"modwire/internal/validate"
)

//go:embed templates/*.java.tmpl
var templateFS embed.FS

const (
	templateDir = "templates"
	// restImplTemplate renders the service class generated next to a REST
	// resource.
	restImplTemplate = "rest_service_impl.java.tmpl"
	restKind         = "rest-service"
	servicesPackage  = "services"
)

// ErrExists is returned when a generated file would overwrite an existing one.
var ErrExists = errors.New("file already exists")

// Data is what templates see.
type Data struct {
	Package         string
	ClassName       string
	Path            string // REST path, channel or queue name; defaults to lower-cased ClassName
	ServiceName     string // REST companion class
	RestServiceName string
	ModuleName      string
	Interface       string
}

// Request asks for one class of a kind.
type Request struct {
	Kind       provision.Kind
	ClassName  string
	Package    string
	Path       string
	ModuleName string
	SourceRoot string
}

// File is one generated source.
type File struct {
	Path      string // absolute
	ClassName string // fully qualified
}

// Result lists generated files and the facts to register.
type Result struct {
	Files []File
	Facts []provision.Fact
}

// Loader resolves template names, first in ExtraDir (for kinds added through
// configuration), then among the embedded templates.
type Loader struct {
	ExtraDir string
	Logger   *zap.Logger
}

// NewLoader returns a loader that also looks in extraDir; extraDir may be "".
func NewLoader(extraDir string, log *zap.Logger) *Loader {
	return &Loader{ExtraDir: extraDir, Logger: logging.OrNop(log)}
}

// Load returns the text of the named template.
func (l *Loader) Load(name string) (string, error) {
	if l.ExtraDir != "" {
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(l.ExtraDir, filepath.FromSlash(name))
		}
		b, err := os.ReadFile(p)
		if err == nil {
			l.Logger.Debug("using project template", zap.String("path", p))
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to load template %s: %w", name, err)
		}
	}
	b, err := templateFS.ReadFile(templateDir + "/" + name)
	if err != nil {
		known, _ := Embedded()
		return "", fmt.Errorf("failed to load template %s (built-in: %s): %w", name, strings.Join(known, ", "), err)
	}
	return string(b), nil
}

// Render executes the named template with data.
func (l *Loader) Render(name string, data Data) (string, error) {
	content, err := l.Load(name)
	if err != nil {
		return "", err
	}
	funcMap := template.FuncMap{
		"ToUpper": strings.ToUpper,
		"ToLower": strings.ToLower,
	}
	tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return textutil.EnsureTrailingLF(textutil.NormalizeLF(out.String())), nil
}

// Embedded lists the built-in template names.
func Embedded() ([]string, error) {
	entries, err := templateFS.ReadDir(templateDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Generate renders req into tx. It refuses to overwrite existing files and
// stages nothing when any target exists.
func (l *Loader) Generate(tx *txn.Tx, req Request) (*Result, error) {
	err := validate.All(
		func() error { return validate.Identifier(req.ClassName) },
		func() error {
			if req.Package == "" {
				return errors.New("package must not be empty")
			}
			return validate.PackageName(req.Package)
		},
	)
	if err != nil {
		return nil, err
	}
	data := Data{
		Package:    req.Package,
		ClassName:  req.ClassName,
		Path:       req.Path,
		ModuleName: req.ModuleName,
		Interface:  req.Kind.Interface,
	}
	if data.Path == "" {
		data.Path = strings.ToLower(req.ClassName)
	}
	if data.ModuleName == "" {
		data.ModuleName = req.Package
	}

	type pending struct {
		tmpl string
		data Data
	}
	jobs := []pending{{tmpl: req.Kind.Template, data: data}}
	if req.Kind.Name == restKind {
		data.ServiceName = req.ClassName + "Service"
		jobs[0].data = data
		impl := data
		impl.Package = req.Package + "." + servicesPackage
		impl.ClassName = data.ServiceName
		impl.RestServiceName = req.ClassName
		jobs = append(jobs, pending{tmpl: restImplTemplate, data: impl})
	}

	res := &Result{}
	texts := make([]string, len(jobs))
	for i, j := range jobs {
		fqcn := j.data.Package + "." + j.data.ClassName
		p := javasrc.ClassFile(req.SourceRoot, fqcn)
		if _, exists, err := tx.Read(p); err != nil {
			return nil, err
		} else if exists {
			return nil, fmt.Errorf("%w: %s", ErrExists, p)
		}
		text, err := l.Render(j.tmpl, j.data)
		if err != nil {
			return nil, err
		}
		texts[i] = text
		res.Files = append(res.Files, File{Path: p, ClassName: fqcn})
	}
	for i, f := range res.Files {
		if err := tx.Stage(f.Path, texts[i]); err != nil {
			return nil, err
		}
		l.Logger.Debug("class rendered", zap.String("class", f.ClassName), zap.String("template", jobs[i].tmpl))
	}
	if req.Kind.Registers() {
		res.Facts = append(res.Facts, provision.NewFact(req.Kind.Interface, req.Package, req.ClassName))
	}
	return res, nil
}

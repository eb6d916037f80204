// Package main provides the modwire CLI, which keeps a Java project's module
// descriptor (module-info.java) and its service manifests
// (META-INF/services/<interface>) in step.
//
// Commands:
//   - register : modwire register <interface> <implementation>
//   - new      : modwire new <kind> <ClassName> [--package p]
//   - kinds    : list the scaffolding kinds and their interfaces
//   - list     : show provides statements and manifest entries
//   - check    : report drift between descriptors and manifests
//   - undo     : revert the last committed change
//
// Exit status is 0 on success (including no-ops), 1 on failure or when check
// reports findings, and 2 on usage errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modwire/internal/config"
	"modwire/internal/diff"
	"modwire/internal/logging"
	"modwire/internal/meta"
	"modwire/internal/provision"
	"modwire/internal/registrar"
	"modwire/internal/ui"
	"modwire/internal/walkwalk"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// usageError marks errors caused by bad arguments or flags.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// errFindings makes check exit with status 1 after printing its report.
var errFindings = errors.New("inconsistencies found")

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	root         string
	configPath   string
	dryRun       bool
	verbose      bool
	color        string
	includeTests bool
	exclude      string
}

// env is everything a command needs, built once per invocation.
type env struct {
	flags   globalFlags
	stdout  io.Writer
	stderr  io.Writer
	newLog  func(verbose bool) (*zap.Logger, error)
	log     *zap.Logger
	cfg     *config.Config
	layout  meta.Layout
	kinds   provision.Table
	printer *ui.Printer
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, logging.New))
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, newLog func(bool) (*zap.Logger, error)) int {
	e := &env{stdout: stdout, stderr: stderr, newLog: newLog}
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if e.log != nil {
		_ = e.log.Sync()
	}
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errFindings) {
		return exitFail
	}
	p := e.printer
	if p == nil {
		p = ui.New(stdout, stderr, "off")
	}
	p.Error("%v", err)
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		return exitUsage
	}
	return exitFail
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "modwire",
		Short: "Keep module-info.java and META-INF/services in step",
		Long: `modwire registers service implementations in a Java project's module
descriptor and service-loader manifests, scaffolds GuicedEE classes, and
checks that both projections agree.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	f := root.PersistentFlags()
	f.StringVar(&e.flags.root, "root", "", "project root (default: config file directory or current directory)")
	f.StringVar(&e.flags.configPath, "config", "", "config file (default: modwire.toml/.yaml found by walking up)")
	f.BoolVar(&e.flags.dryRun, "dry-run", false, "print unified diffs instead of writing")
	f.BoolVarP(&e.flags.verbose, "verbose", "v", false, "debug logging to stderr")
	f.StringVar(&e.flags.color, "color", "", "colorize output (auto|on|off)")
	f.BoolVar(&e.flags.includeTests, "include-tests", false, "also touch test descriptors and manifests")
	f.StringVar(&e.flags.exclude, "exclude", "", "extra directory names to skip during discovery (comma-separated)")

	root.AddCommand(
		newRegisterCmd(e),
		newNewCmd(e),
		newKindsCmd(e),
		newListCmd(e),
		newCheckCmd(e),
		newUndoCmd(e),
	)
	return root
}

// setup loads configuration, resolves the project layout and builds the
// logger and printer.
func (e *env) setup() error {
	log, err := e.newLog(e.flags.verbose)
	if err != nil {
		return err
	}
	e.log = log

	start := e.flags.root
	if start == "" {
		if start, err = os.Getwd(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(e.flags.configPath, start)
	if err != nil {
		return err
	}
	e.cfg = cfg

	root := e.flags.root
	if root == "" {
		root = cfg.Root(start)
	}
	ov := cfg.Overrides()
	cfgDir := cfg.Root(root)
	if ov.SourceRoot != "" && !filepath.IsAbs(ov.SourceRoot) {
		ov.SourceRoot = filepath.Join(cfgDir, ov.SourceRoot)
	}
	if ov.ResourcesRoot != "" && !filepath.IsAbs(ov.ResourcesRoot) {
		ov.ResourcesRoot = filepath.Join(cfgDir, ov.ResourcesRoot)
	}
	layout, err := meta.ResolveLayout(root, ov)
	if err != nil {
		return err
	}
	e.layout = layout
	e.kinds = cfg.KindTable()

	mode := cfg.Output.Color
	if e.flags.color != "" {
		mode = e.flags.color
	}
	switch mode {
	case "", config.ColorAuto, config.ColorOn, config.ColorOff:
	default:
		return usageError{fmt.Errorf("invalid --color %q (valid: auto, on, off)", mode)}
	}
	e.printer = ui.New(e.stdout, e.stderr, mode)

	e.log.Debug("project resolved",
		zap.String("root", layout.Root),
		zap.String("build", layout.Build.Build),
		zap.String("source_root", layout.Rel(layout.SourceRoot)),
		zap.String("resources_root", layout.Rel(layout.ResourcesRoot)),
		zap.String("config", cfg.Path))
	return nil
}

func (e *env) includeTests() bool {
	return e.flags.includeTests || e.cfg.Project.IncludeTests
}

func (e *env) registrar() *registrar.Registrar {
	walk := walkwalk.DefaultOptions()
	for name := range toSet(splitCSV(e.flags.exclude)) {
		walk.Exclude[name] = struct{}{}
	}
	return registrar.New(registrar.Options{
		Layout:       e.layout,
		IncludeTests: e.includeTests(),
		DryRun:       e.flags.dryRun,
		Diff:         diff.Options{Context: e.cfg.Output.DiffContext, MaxBytes: 1 << 20},
		Walk:         walk,
		Logger:       e.log,
	})
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

// splitCSV converts a comma-separated list into a slice, dropping empty parts.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 8)
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			p := s[start:i]
			if p != "" {
				out = append(out, p)
			}
			start = i + 1
		}
	}
	return out
}

// toSet builds a string->struct{} set from a slice, skipping empty strings.
func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, v := range list {
		if v != "" {
			m[v] = struct{}{}
		}
	}
	return m
}

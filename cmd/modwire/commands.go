package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"modwire/internal/javasrc"
	"modwire/internal/provision"
	"modwire/internal/registrar"
	"modwire/internal/scaffold"
	"modwire/internal/sortutil"
	"modwire/internal/txn"
	"modwire/internal/walkwalk"
)

func newRegisterCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "register <interface> <implementation>",
		Short: "Register an implementation in module-info.java and META-INF/services",
		Example: `  modwire register com.guicedee.guicedinjection.interfaces.IGuiceModule com.acme.AppModule
  modwire register --dry-run com.acme.spi.IHook com.acme.hooks.AuditHook`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fact := provision.Fact{Interface: strings.TrimSpace(args[0]), Implementation: strings.TrimSpace(args[1])}
			if err := fact.Validate(); err != nil {
				return usageError{err}
			}
			rep, err := e.registrar().Register(cmd.Context(), fact)
			if err != nil {
				return err
			}
			e.printReport(rep)
			return nil
		},
	}
}

func newNewCmd(e *env) *cobra.Command {
	var pkg, dir, path string
	cmd := &cobra.Command{
		Use:   "new <kind> <ClassName>",
		Short: "Create a class from a template and register it",
		Long: `Renders the template of <kind> into the source root and, when the kind
maps to an extension-point interface, registers the new class. Run
'modwire kinds' for the available kinds.`,
		Example: `  modwire new pre-startup DatabaseWarmup --package com.acme.startup
  modwire new rest-service Orders --path orders`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := e.kinds.Lookup(args[0])
			if err != nil {
				return usageError{err}
			}
			if pkg == "" && dir != "" {
				abs := dir
				if !filepath.IsAbs(abs) {
					abs = filepath.Join(e.layout.SourceRoot, dir)
				}
				if pkg, err = javasrc.PackageForDir(e.layout.SourceRoot, abs); err != nil {
					return usageError{err}
				}
			}
			if pkg == "" {
				pkg = e.layout.BasePackage
			}

			tx, err := txn.Begin(e.layout.Root, e.log)
			if err != nil {
				return err
			}
			loader := scaffold.NewLoader(e.cfg.Root(e.layout.Root), e.log)
			res, err := loader.Generate(tx, scaffold.Request{
				Kind:       kind,
				ClassName:  args[1],
				Package:    pkg,
				Path:       path,
				ModuleName: e.moduleName(),
				SourceRoot: e.layout.SourceRoot,
			})
			if err != nil {
				tx.Discard()
				if errors.Is(err, scaffold.ErrExists) {
					return err
				}
				return usageError{err}
			}
			reg := e.registrar()
			files, err := reg.Stage(cmd.Context(), tx, res.Facts...)
			if err != nil {
				tx.Discard()
				return err
			}
			rep, err := reg.Finish(tx, files)
			if err != nil {
				return err
			}
			if !rep.DryRun {
				for _, f := range res.Files {
					e.printer.Success("created", "%s", e.layout.Rel(f.Path))
				}
			}
			if !kind.Registers() {
				e.log.Info("kind has no extension-point interface; registration skipped", zap.String("kind", kind.Name))
			}
			e.printReport(rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "", "package of the new class (default: from --dir, else the base package)")
	cmd.Flags().StringVar(&dir, "dir", "", "directory under the source root to place the class in")
	cmd.Flags().StringVar(&path, "path", "", "REST path, channel or queue name (default: lower-cased class name)")
	return cmd
}

// moduleName reads the declared module of the main descriptor, if any.
func (e *env) moduleName() string {
	b, err := os.ReadFile(filepath.Join(e.layout.SourceRoot, walkwalk.DescriptorName))
	if err != nil {
		return ""
	}
	return javasrc.ModuleName(string(b))
}

func newKindsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List scaffolding kinds and the interfaces they register",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tGROUP\tINTERFACE")
			for _, name := range e.kinds.Names() {
				k := e.kinds[name]
				iface := k.Interface
				if iface == "" {
					iface = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, k.Group, iface)
			}
			return tw.Flush()
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show provides statements and manifest entries per module",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := e.registrar().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(views) == 0 {
				e.printer.Info("no %s found under %s", walkwalk.DescriptorName, e.layout.Root)
				return nil
			}
			for _, v := range views {
				if v.Err != nil {
					e.printer.Warn("%s: %v", v.Descriptor, v.Err)
					continue
				}
				e.printer.Info("%s (module %s)", v.Descriptor, v.Name)
				if len(v.Requires) > 0 {
					e.printer.Info("  requires %s", strings.Join(v.Requires, ", "))
				}
				for _, u := range v.Uses {
					e.printer.Info("  uses %s", u)
				}
				for _, p := range v.Provides {
					line := fmt.Sprintf("  provides %s with %s", p.Interface, strings.Join(p.Impls, ", "))
					if kinds := e.kinds.ForInterface(p.Interface); len(kinds) > 0 {
						names := make([]string, 0, len(kinds))
						for _, k := range kinds {
							names = append(names, k.Name)
						}
						line += " [" + strings.Join(names, ", ") + "]"
					}
					e.printer.Info("%s", line)
				}
				for _, iface := range sortutil.Keys(v.Manifests) {
					e.printer.Info("  META-INF/services/%s: %s", iface, strings.Join(v.Manifests[iface], ", "))
				}
			}
			return nil
		},
	}
}

func newCheckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report drift between module descriptors and service manifests",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			findings, err := e.registrar().Check(cmd.Context())
			if err != nil {
				return err
			}
			if len(findings) == 0 {
				e.printer.Success("ok", "descriptors and manifests agree")
				return nil
			}
			for _, f := range findings {
				e.printer.Warn("%s", f)
			}
			e.printer.Info("%d finding(s)", len(findings))
			return errFindings
		},
	}
}

func newUndoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last committed change",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.flags.dryRun {
				j, err := txn.LoadJournal(e.layout.Root)
				if err != nil {
					return err
				}
				if j == nil {
					return txn.ErrNoJournal
				}
				for _, en := range j.Entries {
					action := "restore"
					if en.Created {
						action = "remove"
					}
					e.printer.Info("%s %s", action, en.Path)
				}
				return nil
			}
			rep, err := txn.Undo(e.layout.Root, e.log)
			if err != nil {
				return err
			}
			for _, p := range sortutil.StablePathSort(rep.Restored) {
				e.printer.Success("restored", "%s", p)
			}
			for _, p := range sortutil.StablePathSort(rep.Removed) {
				e.printer.Success("removed", "%s", p)
			}
			return nil
		},
	}
}

// printReport shows per-file outcomes, or diffs for a dry run.
func (e *env) printReport(rep *registrar.Report) {
	if len(rep.Files) > 0 && rep.NoDescriptor {
		e.printer.Warn("no %s under %s; only manifests were updated", walkwalk.DescriptorName, e.layout.Rel(e.layout.SourceRoot))
	}
	if rep.DryRun {
		for _, d := range rep.Diffs {
			e.printer.Diff(d.Patch)
		}
		return
	}
	for _, f := range rep.Files {
		if f.Outcome == registrar.Unchanged {
			e.printer.Skip(string(f.Outcome), "%s", f.Path)
			continue
		}
		e.printer.Success(string(f.Outcome), "%s", f.Path)
	}
}

package provision

import (
	"errors"
	"fmt"
	"strings"

	"modwire/internal/sortutil"
)

// ErrUnknownKind is returned by Table.Lookup for names not in the table.
var ErrUnknownKind = errors.New("unknown kind")

const (
	injectionPkg  = "com.guicedee.guicedinjection.interfaces."
	websocketsPkg = "com.guicedee.guicedservlets.websockets.services."
)

// Kind describes one scaffolding template. Interface is empty for kinds that
// produce a class but are not discovered through the service loader; for
// those the registration step is skipped.
type Kind struct {
	Name      string `toml:"-" yaml:"-"`
	Interface string `toml:"interface" yaml:"interface"`
	Template  string `toml:"template" yaml:"template"`
	Group     string `toml:"group" yaml:"group"`
}

// Registers reports whether classes of this kind get a provision fact.
func (k Kind) Registers() bool { return k.Interface != "" }

// Table maps kind names to kinds.
type Table map[string]Kind

// Builtin returns a fresh copy of the default kind table.
func Builtin() Table {
	t := Table{}
	add := func(name, iface, tmpl, group string) {
		t[name] = Kind{Name: name, Interface: iface, Template: tmpl, Group: group}
	}
	add("module", injectionPkg+"IGuiceModule", "module.java.tmpl", "core")
	add("pre-startup", injectionPkg+"IGuicePreStartup", "pre_startup.java.tmpl", "hooks")
	add("post-startup", injectionPkg+"IGuicePostStartup", "post_startup.java.tmpl", "hooks")
	add("pre-destroy", injectionPkg+"IGuicePreDestroy", "pre_destroy.java.tmpl", "hooks")
	add("scan-module-inclusions", injectionPkg+"IGuiceScanModuleInclusions", "scan_module_inclusions.java.tmpl", "lifecycle")
	add("configurator", injectionPkg+"IGuiceConfigurator", "configurator.java.tmpl", "lifecycle")
	add("file-contents-scanner", injectionPkg+"IFileContentsScanner", "file_contents_scanner.java.tmpl", "lifecycle")
	add("file-contents-pattern-scanner", injectionPkg+"IFileContentsPatternScanner", "file_contents_pattern_scanner.java.tmpl", "lifecycle")
	add("package-contents-scanner", injectionPkg+"IPackageContentsScanner", "package_contents_scanner.java.tmpl", "lifecycle")
	add("path-contents-scanner", injectionPkg+"IPathContentsScanner", "path_contents_scanner.java.tmpl", "lifecycle")
	add("on-call-scope-enter", injectionPkg+"IOnCallScopeEnter", "on_call_scope_enter.java.tmpl", "lifecycle")
	add("on-call-scope-exit", injectionPkg+"IOnCallScopeExit", "on_call_scope_exit.java.tmpl", "lifecycle")
	add("websocket-channel", websocketsPkg+"IGuicedWebSocket", "websocket_channel.java.tmpl", "web")
	add("websocket-message-receiver", websocketsPkg+"IWebSocketMessageReceiver", "websocket_message_receiver.java.tmpl", "web")
	add("websocket-pre-configuration", websocketsPkg+"IWebSocketPreConfiguration", "websocket_pre_configuration.java.tmpl", "web")
	add("rest-service", "", "rest_service.java.tmpl", "rest")
	add("persistence-module", "", "persistence_module.java.tmpl", "database")
	add("rabbitmq-consumer", "", "rabbitmq_consumer.java.tmpl", "messaging")
	add("job", "", "job.java.tmpl", "core")
	return t
}

// Lookup finds a kind by name, case-insensitively.
func (t Table) Lookup(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if k, ok := t[key]; ok {
		return k, nil
	}
	return Kind{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownKind, name, strings.Join(t.Names(), ", "))
}

// Names returns the kind names in sorted order.
func (t Table) Names() []string {
	return sortutil.Keys(t)
}

// Merge returns a new table where entries of overrides replace or extend t.
// Empty fields in an override keep the existing value, so a config file can
// re-point only the interface of a built-in kind.
func (t Table) Merge(overrides map[string]Kind) Table {
	out := make(Table, len(t)+len(overrides))
	for name, k := range t {
		out[name] = k
	}
	for name, o := range overrides {
		key := strings.ToLower(strings.TrimSpace(name))
		cur := out[key]
		cur.Name = key
		if o.Interface != "" {
			cur.Interface = o.Interface
		}
		if o.Template != "" {
			cur.Template = o.Template
		}
		if o.Group != "" {
			cur.Group = o.Group
		}
		out[key] = cur
	}
	return out
}

// ForInterface returns the kinds registered against iface, sorted by name.
func (t Table) ForInterface(iface string) []Kind {
	var out []Kind
	for _, name := range t.Names() {
		if k := t[name]; k.Interface == iface {
			out = append(out, k)
		}
	}
	return out
}

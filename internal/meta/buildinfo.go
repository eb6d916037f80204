// Package meta detects the build system of a Java project (Maven/Gradle) and
// resolves where sources, resources and the base package live.
//
// Goals:
//   - Best-effort parsing: tolerate partial/absent build files
//   - Deterministic defaults for the standard Maven/Gradle layout
package meta

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultBasePackage is used when neither config nor build files name one.
const DefaultBasePackage = "com.example"

// Info contains a minimal summary of build metadata.
type Info struct {
	Build  string // "maven"|"gradle"|"" (unknown)
	JDK    string // e.g., "21", "17"
	Module string // artifactId or rootProject.name
	Group  string // groupId / group
}

// Layout is the resolved set of roots used by registration and scaffolding.
// All paths are absolute.
type Layout struct {
	Root              string
	SourceRoot        string
	ResourcesRoot     string
	TestSourceRoot    string
	TestResourcesRoot string
	BasePackage       string
	Build             Info
}

// Overrides carries user configuration; empty fields keep detected values.
// Relative paths are resolved against the project root.
type Overrides struct {
	SourceRoot    string
	ResourcesRoot string
	BasePackage   string
}

// Detect probes the project root for build files.
//
// Priority (first match wins): Maven > Gradle
func Detect(root string) Info {
	absRoot, _ := filepath.Abs(root)

	if p := firstExisting(absRoot, "pom.xml"); p != "" {
		if inf, ok := detectMaven(absRoot, p); ok {
			return inf
		}
	}
	if p := firstExisting(absRoot, "build.gradle", "build.gradle.kts"); p != "" {
		if inf, ok := detectGradle(absRoot, p); ok {
			return inf
		}
	}
	return Info{Module: filepath.Base(absRoot)}
}

// ResolveLayout combines detection with overrides.
func ResolveLayout(root string, ov Overrides) (Layout, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}
	inf := Detect(absRoot)
	l := Layout{
		Root:              absRoot,
		SourceRoot:        filepath.Join(absRoot, "src", "main", "java"),
		ResourcesRoot:     filepath.Join(absRoot, "src", "main", "resources"),
		TestSourceRoot:    filepath.Join(absRoot, "src", "test", "java"),
		TestResourcesRoot: filepath.Join(absRoot, "src", "test", "resources"),
		BasePackage:       firstNonEmpty(ov.BasePackage, inf.Group, DefaultBasePackage),
		Build:             inf,
	}
	if ov.SourceRoot != "" {
		l.SourceRoot = resolve(absRoot, ov.SourceRoot)
	}
	if ov.ResourcesRoot != "" {
		l.ResourcesRoot = resolve(absRoot, ov.ResourcesRoot)
	}
	return l, nil
}

// Rel returns p relative to the layout root with forward slashes, for display.
func (l Layout) Rel(p string) string {
	rel, err := filepath.Rel(l.Root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// IsTestPath reports whether p lies under the test source or resources root.
func (l Layout) IsTestPath(p string) bool {
	for _, root := range []string{l.TestSourceRoot, l.TestResourcesRoot} {
		rel, err := filepath.Rel(root, p)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// ------------------------------ Maven ----------------------------------------

type pomXML struct {
	XMLName    xml.Name  `xml:"project"`
	GroupID    string    `xml:"groupId"`
	ArtifactID string    `xml:"artifactId"`
	Parent     pomParent `xml:"parent"`
	Props      pomProps  `xml:"properties"`
}

type pomParent struct {
	GroupID string `xml:"groupId"`
}

type pomProps struct {
	Source  string `xml:"maven.compiler.source"`
	Target  string `xml:"maven.compiler.target"`
	Release string `xml:"maven.compiler.release"`
	JavaVer string `xml:"java.version"`
}

func detectMaven(root, pomPath string) (Info, bool) {
	b, err := os.ReadFile(pomPath)
	if err != nil {
		return Info{}, false
	}
	var p pomXML
	if err := xml.Unmarshal(b, &p); err != nil {
		return Info{}, false
	}
	return Info{
		Build:  "maven",
		JDK:    normalizeJDK(firstNonEmpty(p.Props.Release, p.Props.Target, p.Props.Source, p.Props.JavaVer)),
		Module: firstNonEmpty(p.ArtifactID, filepath.Base(root)),
		Group:  firstNonEmpty(p.GroupID, p.Parent.GroupID),
	}, true
}

// ------------------------------ Gradle ---------------------------------------

var (
	reGradleCompatQuoted = regexp.MustCompile(`(?m)^\s*(?:sourceCompatibility|targetCompatibility)\s*=\s*["']?(\d{1,2})["']?`)
	reGradleCompatEnum   = regexp.MustCompile(`(?m)^\s*(?:sourceCompatibility|targetCompatibility)\s*=\s*JavaVersion\.VERSION_(\d{1,2})`)
	reGradleToolchain    = regexp.MustCompile(`JavaLanguageVersion\.of\(\s*(\d{1,2})\s*\)`)
	reGradleGroup        = regexp.MustCompile(`(?m)^\s*group\s*=\s*["']([^"']+)["']`)
	reGradleRootName     = regexp.MustCompile(`(?m)^\s*rootProject\.name\s*=\s*["']([^"']+)["']`)
)

func detectGradle(root, buildPath string) (Info, bool) {
	b, err := os.ReadFile(buildPath)
	if err != nil {
		return Info{}, false
	}
	text := string(b)

	jdk := ""
	for _, re := range []*regexp.Regexp{reGradleCompatQuoted, reGradleCompatEnum, reGradleToolchain} {
		if m := re.FindStringSubmatch(text); m != nil {
			jdk = normalizeJDK(m[1])
			break
		}
	}

	group := ""
	if m := reGradleGroup.FindStringSubmatch(text); m != nil {
		group = m[1]
	}

	mod := ""
	if p := firstExisting(root, "settings.gradle", "settings.gradle.kts"); p != "" {
		if sb, err := os.ReadFile(p); err == nil {
			if m := reGradleRootName.FindStringSubmatch(string(sb)); m != nil {
				mod = m[1]
			}
		}
	}

	return Info{
		Build:  "gradle",
		JDK:    jdk,
		Module: firstNonEmpty(mod, filepath.Base(root)),
		Group:  group,
	}, true
}

// ---------------------------- helpers ---------------------------------------

func firstExisting(root string, names ...string) string {
	for _, n := range names {
		p := filepath.Join(root, n)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}

// normalizeJDK tries to coerce input like "21", "1.8", "17.0.1" into "21"|"17"|"8".
func normalizeJDK(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "1.") && len(s) >= 3 {
		s = strings.TrimPrefix(s, "1.")
	}
	out := strings.Builder{}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		out.WriteByte(s[i])
	}
	return out.String()
}

package manifest

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Kind identifies the source of a dependency entry.
type Kind int

const (
	KindVersion Kind = iota
	KindGit
	KindPath
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindGit:
		return "git"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

// Dependency is one value of a dependency table.
//
// A plain version is written as a string (requests = "2.31.0"); every other
// shape is written as an inline table (repo = { git = "...", rev = "main" }).
// Keys without a field here, such as markers, python, source or url, and the
// list form of multiple constraints are kept as read and written back.
type Dependency struct {
	Version      string   // Version or range; the only field of a plain entry
	Git          string   // Repository URL
	Branch       string   // Git branch
	Tag          string   // Git tag
	Rev          string   // Git revision (commit, branch or tag as typed)
	Subdirectory string   // Project subdirectory inside the repository
	Path         string   // Local archive or folder
	Develop      bool     // Editable install of a local folder
	Optional     bool     // Only installed through an extra
	Extras       []string // Extras requested for this dependency

	extra        map[string]any
	alternatives []any
}

// Versioned returns a registry dependency pinned to version.
func Versioned(version string) Dependency {
	return Dependency{Version: version}
}

// GitSource returns a dependency on a repository at an optional revision.
func GitSource(url, rev string) Dependency {
	return Dependency{Git: url, Rev: rev}
}

// PathSource returns a dependency on a local archive or folder.
func PathSource(path string, develop bool) Dependency {
	return Dependency{Path: path, Develop: develop}
}

// Multiple reports whether the dependency uses the list form of several
// constraint tables.
func (d Dependency) Multiple() bool {
	return len(d.alternatives) > 0
}

// Kind reports which source the dependency refers to.
func (d Dependency) Kind() Kind {
	switch {
	case d.Git != "":
		return KindGit
	case d.Path != "":
		return KindPath
	default:
		return KindVersion
	}
}

// Ref returns the git reference to check out, preferring rev over tag over branch.
func (d Dependency) Ref() string {
	switch {
	case d.Rev != "":
		return d.Rev
	case d.Tag != "":
		return d.Tag
	default:
		return d.Branch
	}
}

// String renders the dependency for terminal output.
func (d Dependency) String() string {
	switch d.Kind() {
	case KindGit:
		if ref := d.Ref(); ref != "" {
			return d.Git + "#" + ref
		}
		return d.Git
	case KindPath:
		return d.Path
	}
	if d.Multiple() {
		var versions []string
		for _, alt := range d.alternatives {
			if t, ok := alt.(map[string]any); ok {
				if v, ok := t["version"].(string); ok {
					versions = append(versions, v)
				}
			}
		}
		return strings.Join(versions, " | ")
	}
	if d.Version == "" {
		if u, ok := d.extra["url"].(string); ok {
			return u
		}
	}
	return d.Version
}

func (d Dependency) plain() bool {
	return d.Kind() == KindVersion && !d.Optional && len(d.Extras) == 0 &&
		len(d.extra) == 0 && !d.Multiple()
}

// MarshalTOML implements toml.Marshaler.
func (d Dependency) MarshalTOML() ([]byte, error) {
	if d.Multiple() {
		s, err := inlineValue(d.alternatives)
		return []byte(s), err
	}
	if d.plain() {
		return []byte(quote(d.Version)), nil
	}

	var fields []string
	str := func(key, val string) {
		if val != "" {
			fields = append(fields, key+" = "+quote(val))
		}
	}
	str("version", d.Version)
	str("git", d.Git)
	str("branch", d.Branch)
	str("tag", d.Tag)
	str("rev", d.Rev)
	str("subdirectory", d.Subdirectory)
	str("path", d.Path)
	if d.Develop {
		fields = append(fields, "develop = true")
	}
	if d.Optional {
		fields = append(fields, "optional = true")
	}
	if len(d.Extras) > 0 {
		quoted := make([]string, len(d.Extras))
		for i, e := range d.Extras {
			quoted[i] = quote(e)
		}
		fields = append(fields, "extras = ["+strings.Join(quoted, ", ")+"]")
	}
	for _, key := range slices.Sorted(maps.Keys(d.extra)) {
		val, err := inlineValue(d.extra[key])
		if err != nil {
			return nil, fmt.Errorf("dependency key %s: %w", key, err)
		}
		fields = append(fields, tomlKey(key)+" = "+val)
	}
	return []byte("{ " + strings.Join(fields, ", ") + " }"), nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Dependency) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*d = Dependency{Version: val}
		return nil
	case map[string]any:
		return d.fromTable(val)
	case []any:
		return d.fromList(val)
	case []map[string]any:
		items := make([]any, len(val))
		for i, t := range val {
			items[i] = t
		}
		return d.fromList(items)
	default:
		return fmt.Errorf("dependency must be a string or table, got %T", v)
	}
}

func (d *Dependency) fromTable(t map[string]any) error {
	var out Dependency
	for key, raw := range t {
		var err error
		switch key {
		case "version":
			out.Version, err = asString(key, raw)
		case "git":
			out.Git, err = asString(key, raw)
		case "branch":
			out.Branch, err = asString(key, raw)
		case "tag":
			out.Tag, err = asString(key, raw)
		case "rev":
			out.Rev, err = asString(key, raw)
		case "subdirectory":
			out.Subdirectory, err = asString(key, raw)
		case "path":
			out.Path, err = asString(key, raw)
		case "develop":
			out.Develop, err = asBool(key, raw)
		case "optional":
			out.Optional, err = asBool(key, raw)
		case "extras":
			out.Extras, err = asStrings(key, raw)
		default:
			if out.extra == nil {
				out.extra = make(map[string]any)
			}
			out.extra[key] = raw
		}
		if err != nil {
			return err
		}
	}
	if out.Git != "" && out.Path != "" {
		return fmt.Errorf("dependency cannot have both git and path")
	}
	*d = out
	return nil
}

// fromList keeps the list form as read after checking that every item is a
// table.
func (d *Dependency) fromList(items []any) error {
	if len(items) == 0 {
		return fmt.Errorf("dependency constraint list is empty")
	}
	for i, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return fmt.Errorf("dependency constraint %d must be a table, got %T", i, item)
		}
	}
	*d = Dependency{alternatives: items}
	return nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean, got %T", key, v)
	}
	return b, nil
}

func asStrings(key string, v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array, got %T", key, v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := asString(key, item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// quote renders s as a TOML basic string.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// tomlKey renders key bare when TOML allows it and quoted otherwise.
func tomlKey(key string) string {
	if bareKey.MatchString(key) {
		return key
	}
	return quote(key)
}

// inlineValue renders a decoded TOML value on a single line. Tables become
// inline tables with sorted keys; scalars are rendered by the toml encoder.
func inlineValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return quote(val), nil
	case map[string]any:
		if len(val) == 0 {
			return "{}", nil
		}
		fields := make([]string, 0, len(val))
		for _, key := range slices.Sorted(maps.Keys(val)) {
			s, err := inlineValue(val[key])
			if err != nil {
				return "", err
			}
			fields = append(fields, tomlKey(key)+" = "+s)
		}
		return "{ " + strings.Join(fields, ", ") + " }", nil
	case []map[string]any:
		items := make([]any, len(val))
		for i, t := range val {
			items[i] = t
		}
		return inlineValue(items)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, err := inlineValue(item)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(map[string]any{"v": val}); err != nil {
			return "", err
		}
		s, ok := strings.CutPrefix(strings.TrimSpace(buf.String()), "v = ")
		if !ok {
			return "", fmt.Errorf("cannot render %T inline", v)
		}
		return s, nil
	}
}

// Dependencies maps dependency names to their values. Keys are case-sensitive.
type Dependencies map[string]Dependency

// Names returns the sorted dependency names.
func (d Dependencies) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entry is a resolved dependency together with the name it is recorded under.
type Entry struct {
	Name       string
	Dependency Dependency
}

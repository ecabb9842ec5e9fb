package manifest

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/matzehuels/poet/pkg/errors"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "pyproject.toml"

// MainGroup names the top-level dependency table.
const MainGroup = "main"

// DevGroup is the group used when dependencies are added as development-only.
const DevGroup = "dev"

// Metadata is the project identity block of [tool.poetry].
type Metadata struct {
	Name          string   `toml:"name"`
	Version       string   `toml:"version"`
	Description   string   `toml:"description"`
	License       string   `toml:"license"`
	Authors       []string `toml:"authors"`
	Maintainers   []string `toml:"maintainers"`
	Readme        string   `toml:"readme"`
	Homepage      string   `toml:"homepage"`
	Repository    string   `toml:"repository"`
	Documentation string   `toml:"documentation"`
	Keywords      []string `toml:"keywords"`
}

// Group is a named dependency group under [tool.poetry.group.<name>].
type Group struct {
	Optional     bool         `toml:"optional,omitempty"`
	Dependencies Dependencies `toml:"dependencies"`

	extra map[string]any
}

// BuildSystem is the [build-system] table, preserved as read.
type BuildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

// Project is a parsed pyproject.toml.
//
// Keys that are not modelled are kept and written back unchanged, so a load
// followed by a write loses nothing but formatting and comments.
type Project struct {
	Metadata     Metadata
	Dependencies Dependencies
	Groups       map[string]*Group
	BuildSystem  *BuildSystem

	extraRoot   map[string]any
	extraTool   map[string]any
	extraPoetry map[string]any
}

// file mirrors the on-disk layout for decoding.
type file struct {
	Tool struct {
		Poetry struct {
			Metadata
			Dependencies Dependencies      `toml:"dependencies"`
			Groups       map[string]*Group `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
	BuildSystem *BuildSystem `toml:"build-system"`
}

var modelledPoetryKeys = []string{
	"name", "version", "description", "license", "authors", "maintainers",
	"readme", "homepage", "repository", "documentation", "keywords",
	"dependencies", "group",
}

var requiredPoetryKeys = []string{"name", "version", "description"}

// Path returns the manifest path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and parses the manifest in dir.
//
// A missing or unreadable file is MANIFEST_IO; the caller can tell a missing
// file apart with errors.Is(err, os.ErrNotExist). Malformed content, including
// a missing name, version or description, is MANIFEST_DESERIALIZE.
func Load(dir string) (*Project, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestIO, err, "read %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestDeserialize, err, "parse %s", path)
	}
	return p, nil
}

// Parse decodes manifest content.
func Parse(data []byte) (*Project, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, err
	}
	for _, key := range requiredPoetryKeys {
		if !md.IsDefined("tool", "poetry", key) {
			return nil, fmt.Errorf("missing required key tool.poetry.%s", key)
		}
	}

	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}

	poetry := f.Tool.Poetry
	p := &Project{
		Metadata:     poetry.Metadata,
		Dependencies: poetry.Dependencies,
		Groups:       poetry.Groups,
		BuildSystem:  f.BuildSystem,
	}
	p.extraRoot = without(raw, "tool", "build-system")
	tool, _ := raw["tool"].(map[string]any)
	p.extraTool = without(tool, "poetry")
	poetryRaw, _ := tool["poetry"].(map[string]any)
	p.extraPoetry = without(poetryRaw, modelledPoetryKeys...)
	groupsRaw, _ := poetryRaw["group"].(map[string]any)
	for name, g := range p.Groups {
		if g == nil {
			continue
		}
		groupRaw, _ := groupsRaw[name].(map[string]any)
		if extra := without(groupRaw, "optional", "dependencies"); len(extra) > 0 {
			g.extra = extra
		}
	}
	return p, nil
}

func without(m map[string]any, keys ...string) map[string]any {
	out := maps.Clone(m)
	if out == nil {
		return nil
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Table returns the dependency table for group, or the main table when group
// is empty or [MainGroup]. It returns nil when the group does not exist.
func (p *Project) Table(group string) Dependencies {
	if group == "" || group == MainGroup {
		return p.Dependencies
	}
	if g, ok := p.Groups[group]; ok {
		return g.Dependencies
	}
	return nil
}

// SetTable replaces the dependency table for group, creating the group if needed.
func (p *Project) SetTable(group string, deps Dependencies) {
	if group == "" || group == MainGroup {
		p.Dependencies = deps
		return
	}
	if p.Groups == nil {
		p.Groups = make(map[string]*Group)
	}
	g, ok := p.Groups[group]
	if !ok {
		g = &Group{}
		p.Groups[group] = g
	}
	g.Dependencies = deps
}

// Clone returns a copy of p whose tables can be modified independently.
func (p *Project) Clone() *Project {
	c := *p
	c.Dependencies = maps.Clone(p.Dependencies)
	if p.Groups != nil {
		c.Groups = make(map[string]*Group, len(p.Groups))
		for name, g := range p.Groups {
			cg := *g
			cg.Dependencies = maps.Clone(g.Dependencies)
			c.Groups[name] = &cg
		}
	}
	return &c
}

// Encode renders the manifest as TOML.
func (p *Project) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(p.document()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Project) document() map[string]any {
	poetry := maps.Clone(p.extraPoetry)
	if poetry == nil {
		poetry = make(map[string]any)
	}
	m := p.Metadata
	poetry["name"] = m.Name
	poetry["version"] = m.Version
	poetry["description"] = m.Description
	setString(poetry, "license", m.License)
	setString(poetry, "readme", m.Readme)
	setString(poetry, "homepage", m.Homepage)
	setString(poetry, "repository", m.Repository)
	setString(poetry, "documentation", m.Documentation)
	setStrings(poetry, "authors", m.Authors)
	setStrings(poetry, "maintainers", m.Maintainers)
	setStrings(poetry, "keywords", m.Keywords)
	if len(p.Dependencies) > 0 {
		poetry["dependencies"] = p.Dependencies
	}
	if groups := p.nonEmptyGroups(); len(groups) > 0 {
		poetry["group"] = groups
	}

	tool := maps.Clone(p.extraTool)
	if tool == nil {
		tool = make(map[string]any)
	}
	tool["poetry"] = poetry

	root := maps.Clone(p.extraRoot)
	if root == nil {
		root = make(map[string]any)
	}
	root["tool"] = tool
	if p.BuildSystem != nil {
		root["build-system"] = p.BuildSystem
	}
	return root
}

// nonEmptyGroups renders every group that has dependencies or any other key.
func (p *Project) nonEmptyGroups() map[string]any {
	out := make(map[string]any, len(p.Groups))
	for name, g := range p.Groups {
		if g == nil {
			continue
		}
		table := maps.Clone(g.extra)
		if table == nil {
			table = make(map[string]any)
		}
		if g.Optional {
			table["optional"] = true
		}
		if len(g.Dependencies) > 0 {
			table["dependencies"] = g.Dependencies
		}
		if len(table) > 0 {
			out[name] = table
		}
	}
	return out
}

func setString(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

func setStrings(m map[string]any, key string, val []string) {
	if len(val) > 0 {
		m[key] = val
	}
}

// Write serializes p to the manifest in dir.
//
// The content is written to a temporary file in the same directory and
// renamed over the manifest, so readers never observe a partial file.
func Write(dir string, p *Project) error {
	data, err := p.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeManifestSerialize, err, "encode manifest")
	}

	path := Path(dir)
	tmp := filepath.Join(dir, "."+FileName+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeManifestIO, err, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeManifestIO, err, "replace %s", path)
	}
	return nil
}

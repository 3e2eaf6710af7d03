// Package config loads the MCP server registry and logging settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is the conventional registry location, relative to the
// working directory.
const DefaultPath = "conf/mcp-servers.json"

// ErrNotFound reports a missing registry document. Callers match it
// with errors.Is to print remediation separately from parse failures.
var ErrNotFound = errors.New("configuration file not found")

// ServerProfile describes how to launch and address one MCP server.
// Profiles are immutable once loaded.
type ServerProfile struct {
	Name               string              `mapstructure:"-"`
	Description        string              `mapstructure:"description"`
	Command            string              `mapstructure:"command"`
	Args               []string            `mapstructure:"args"`
	Transport          string              `mapstructure:"transport"`
	Env                map[string]string   `mapstructure:"env"`
	Docker             map[string]any      `mapstructure:"docker"`
	Capabilities       map[string]any      `mapstructure:"capabilities"`
	MountedDirectories []map[string]string `mapstructure:"mounted_directories"`
	Options            map[string]any      `mapstructure:"options"`
}

// DockerImage returns the configured container image, or "" when the
// profile has no docker metadata.
func (p ServerProfile) DockerImage() string {
	if p.Docker == nil {
		return ""
	}
	image, _ := p.Docker["image"].(string)
	return image
}

// Registry holds the named server profiles from one JSON document.
type Registry struct {
	path     string
	profiles map[string]ServerProfile
}

// Load reads the registry document at path (DefaultPath when empty).
// A missing file wraps ErrNotFound; a parse failure reports the path.
// Missing optional profile fields take empty defaults and never fail
// the load.
func Load(path string) (*Registry, error) {
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	raw := map[string]ServerProfile{}
	if err := v.UnmarshalKey("mcpServers", &raw); err != nil {
		return nil, fmt.Errorf("invalid server configuration in %s: %w", path, err)
	}

	// Viper lowercases every key. Profile names and environment
	// variable names are case-significant, so both are recovered from
	// a verbatim decode of the same file.
	doc, err := readVerbatim(path)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]ServerProfile, len(raw))
	for key, p := range raw {
		name := key
		if verbatim, ok := doc.names[key]; ok {
			name = verbatim
		}
		p.Name = name
		if overrides, ok := doc.env[key]; ok {
			p.Env = overrides
		}
		if p.Transport == "" {
			p.Transport = "stdio"
		}
		if p.Args == nil {
			p.Args = []string{}
		}
		if p.Env == nil {
			p.Env = map[string]string{}
		}
		if p.Docker == nil {
			p.Docker = map[string]any{}
		}
		if p.Capabilities == nil {
			p.Capabilities = map[string]any{}
		}
		profiles[name] = p
	}

	return &Registry{path: path, profiles: profiles}, nil
}

// verbatimDoc is the case-sensitive slice of the registry document
// that viper cannot provide: profile names and env variable names as
// written. Both maps are keyed by the lowercased profile name so they
// line up with viper's keying.
type verbatimDoc struct {
	names map[string]string
	env   map[string]map[string]string
}

// readVerbatim decodes the document a second time with original key
// casing intact.
func readVerbatim(path string) (*verbatimDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc struct {
		MCPServers map[string]struct {
			Env map[string]string `json:"env"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	out := &verbatimDoc{
		names: make(map[string]string, len(doc.MCPServers)),
		env:   make(map[string]map[string]string),
	}
	for name, entry := range doc.MCPServers {
		key := strings.ToLower(name)
		out.names[key] = name
		if len(entry.Env) > 0 {
			out.env[key] = entry.Env
		}
	}
	return out, nil
}

// Get returns the named profile. The error for an unknown name
// enumerates every configured name, sorted.
func (r *Registry) Get(name string) (ServerProfile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return ServerProfile{}, fmt.Errorf("server %q not found. Available: %s",
			name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names returns all profile names in lexicographic order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PrintTable writes a formatted summary of the configured servers.
// Formatting only; no behavior depends on it.
func (r *Registry) PrintTable(w io.Writer) {
	if len(r.profiles) == 0 {
		fmt.Fprintln(w, "No servers configured")
		return
	}

	rule := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "Available MCP Servers")
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "%-15s %-20s %-45s\n", "Name", "Image", "Description")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, name := range r.Names() {
		p := r.profiles[name]
		image := p.DockerImage()
		if image == "" {
			image = "N/A"
		}
		desc := p.Description
		if len(desc) > 45 {
			desc = desc[:42] + "..."
		}
		fmt.Fprintf(w, "%-15s %-20s %-45s\n", name, image, desc)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "\nTotal servers configured: %d\n", len(r.profiles))
	fmt.Fprintln(w, "\nUsage: mcp-client --server <name> --chat")
	fmt.Fprintln(w, "       mcp-client --server <name> --members")
	fmt.Fprintln(w)
}

// Package meta reads the per-project meta.json descriptor that drives every
// component: which images to build, which terraform components exist, where
// the hasura project lives, which tunnels and routines are defined.
package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const FileName = "meta.json"

// Meta is the parsed descriptor for one project of the monorepo.
type Meta struct {
	ID   string `koanf:"id" json:"id"`
	Name string `koanf:"name" json:"name"`
	Type string `koanf:"type" json:"type"`

	Docker    map[string]DockerBuild        `koanf:"docker" json:"docker,omitempty"`
	Compose   map[string]ComposeConfig      `koanf:"compose" json:"compose,omitempty"`
	Terraform map[string]TerraformComponent `koanf:"terraform" json:"terraform,omitempty"`
	Hasura    *HasuraConfig                 `koanf:"hasura" json:"hasura,omitempty"`
	Tunnel    map[string]TunnelSpec         `koanf:"tunnel" json:"tunnel,omitempty"`
	Custom    map[string]CustomCommand      `koanf:"custom" json:"custom,omitempty"`
	Routines  map[string]Routine            `koanf:"routines" json:"routines,omitempty"`
	Secrets   *SecretsConfig                `koanf:"secrets" json:"secrets,omitempty"`
	Machine   *MachineConfig                `koanf:"machine" json:"machine,omitempty"`

	// Dir is the directory containing the descriptor, set on load.
	Dir string `koanf:"-" json:"-"`
}

// DockerBuild describes one named image build target.
type DockerBuild struct {
	Root       string   `koanf:"root" json:"root,omitempty"`
	Image      string   `koanf:"image" json:"image"`
	Context    string   `koanf:"context" json:"context,omitempty"`
	Dockerfile string   `koanf:"dockerfile" json:"dockerfile,omitempty"`
	EnvBased   bool     `koanf:"env_based" json:"env_based,omitempty"`
	BuildArgs  []string `koanf:"build_args" json:"build_args,omitempty"`
}

// ComposeConfig points at one named docker-compose file.
type ComposeConfig struct {
	Root string `koanf:"root" json:"root,omitempty"`
	File string `koanf:"file" json:"file,omitempty"`
}

// TerraformComponent describes one named terraform root module.
type TerraformComponent struct {
	Path   string `koanf:"path" json:"path"`
	Global bool   `koanf:"global" json:"global,omitempty"`
}

// HasuraConfig locates the hasura project and its connection env vars.
type HasuraConfig struct {
	Path           string `koanf:"path" json:"path"`
	EndpointEnv    string `koanf:"endpoint_env" json:"endpoint_env,omitempty"`
	AdminSecretEnv string `koanf:"admin_secret_env" json:"admin_secret_env,omitempty"`
}

// TunnelSpec describes one named SSH port forward.
type TunnelSpec struct {
	LocalPort  int    `koanf:"local_port" json:"local_port"`
	RemoteHost string `koanf:"remote_host" json:"remote_host,omitempty"`
	RemotePort int    `koanf:"remote_port" json:"remote_port"`
	Via        string `koanf:"via" json:"via"`
}

// CustomCommand is a project-defined command run through `run custom`.
type CustomCommand struct {
	Command string `koanf:"command" json:"command"`
	Dir     string `koanf:"dir" json:"dir,omitempty"`
}

// Routine is a named sequence of steps run through `run routine`.
type Routine struct {
	Description string `koanf:"description" json:"description,omitempty"`
	Steps       []Step `koanf:"steps" json:"steps"`
}

// Step is one shell command inside a routine.
type Step struct {
	Command         string `koanf:"command" json:"command"`
	Dir             string `koanf:"dir" json:"dir,omitempty"`
	ContinueOnError bool   `koanf:"continue_on_error" json:"continue_on_error,omitempty"`
}

// SecretsConfig points at the vault path backing this project's env files.
type SecretsConfig struct {
	VaultPath string `koanf:"vault_path" json:"vault_path"`
}

// MachineConfig identifies the remote dev machine (GCE instance).
type MachineConfig struct {
	Instance string `koanf:"instance" json:"instance"`
	Zone     string `koanf:"zone" json:"zone"`
	Project  string `koanf:"project" json:"project,omitempty"`
}

var validTypes = map[string]bool{"app": true, "infra": true, "library": true}

// envRef matches ${VAR} references inside descriptor strings.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR} references from the process environment.
// Unset variables are left as-is so a missing secret is visible instead of
// silently becoming an empty string.
func ExpandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		if v, ok := os.LookupEnv(string(name)); ok {
			return []byte(v)
		}
		return m
	})
}

// Load parses and validates the descriptor at dir/meta.json.
func Load(dir string) (*Meta, error) {
	path := filepath.Join(dir, FileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(ExpandEnv(raw)), json.Parser()); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	m := &Meta{}
	if err := k.Unmarshal("", m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	m.Dir = dir

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks required fields and cross-field constraints.
func (m *Meta) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("missing required field %q", "id")
	}
	if m.Name == "" {
		return fmt.Errorf("missing required field %q", "name")
	}
	if m.Type != "" && !validTypes[m.Type] {
		return fmt.Errorf("unknown type %q (want app, infra, or library)", m.Type)
	}
	for name, c := range m.Terraform {
		if c.Path == "" {
			return fmt.Errorf("terraform component %q: missing path", name)
		}
	}
	for name, d := range m.Docker {
		if d.Image == "" {
			return fmt.Errorf("docker target %q: missing image", name)
		}
	}
	for name, t := range m.Tunnel {
		if t.LocalPort <= 0 || t.LocalPort > 65535 {
			return fmt.Errorf("tunnel %q: invalid local_port %d", name, t.LocalPort)
		}
		if t.RemotePort <= 0 || t.RemotePort > 65535 {
			return fmt.Errorf("tunnel %q: invalid remote_port %d", name, t.RemotePort)
		}
		if t.Via == "" {
			return fmt.Errorf("tunnel %q: missing via host", name)
		}
	}
	for name, r := range m.Routines {
		if len(r.Steps) == 0 {
			return fmt.Errorf("routine %q: no steps", name)
		}
		for i, s := range r.Steps {
			if s.Command == "" {
				return fmt.Errorf("routine %q: step %d has no command", name, i+1)
			}
		}
	}
	return nil
}

// DockerTarget resolves a named build target, falling back to "default"
// when name is empty.
func (m *Meta) DockerTarget(name string) (DockerBuild, error) {
	if name == "" {
		name = "default"
	}
	d, ok := m.Docker[name]
	if !ok {
		return DockerBuild{}, fmt.Errorf("no docker target %q in %s", name, filepath.Join(m.Dir, FileName))
	}
	return d, nil
}

// ComposeFile resolves a named compose config to an absolute file path.
func (m *Meta) ComposeFile(name string) (string, error) {
	if name == "" {
		name = "default"
	}
	c, ok := m.Compose[name]
	if !ok {
		return "", fmt.Errorf("no compose config %q in %s", name, filepath.Join(m.Dir, FileName))
	}
	file := c.File
	if file == "" {
		file = "docker-compose.yaml"
	}
	return filepath.Join(m.Dir, c.Root, file), nil
}

// TerraformChosen resolves a named terraform component, falling back to the
// sole component when only one is defined.
func (m *Meta) TerraformChosen(name string) (string, TerraformComponent, error) {
	if name == "" && len(m.Terraform) == 1 {
		for n, c := range m.Terraform {
			return n, c, nil
		}
	}
	c, ok := m.Terraform[name]
	if !ok {
		return "", TerraformComponent{}, fmt.Errorf("no terraform component %q in %s", name, filepath.Join(m.Dir, FileName))
	}
	return name, c, nil
}

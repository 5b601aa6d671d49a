package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/xid"
)

// Template is one scaffold choice offered by `run utils scaffold`.
type Template struct {
	Name        string
	Description string
}

var Templates = []Template{
	{Name: "app", Description: "Deployable application (docker + compose)"},
	{Name: "infra", Description: "Infrastructure component (terraform)"},
	{Name: "library", Description: "Shared library (no deploy surface)"},
}

var (
	scaffoldTitleStyle    = lipgloss.NewStyle().Bold(true)
	scaffoldSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

// scaffoldModel is the template selector. It quits with choice set on enter,
// or empty on q/ctrl+c.
type scaffoldModel struct {
	cursor int
	choice string
}

func (m scaffoldModel) Init() tea.Cmd { return nil }

func (m scaffoldModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(Templates)-1 {
			m.cursor++
		}
	case "enter":
		m.choice = Templates[m.cursor].Name
		return m, tea.Quit
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m scaffoldModel) View() string {
	var b strings.Builder
	b.WriteString(scaffoldTitleStyle.Render("Select a project template"))
	b.WriteString("\n\n")
	for i, t := range Templates {
		line := fmt.Sprintf("  %s - %s", t.Name, t.Description)
		if i == m.cursor {
			line = scaffoldSelectedStyle.Render("> " + line[2:])
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n  enter select · q cancel\n")
	return b.String()
}

// PromptTemplate runs the interactive selector and returns the chosen
// template name, or "" when the user cancelled.
func PromptTemplate() (string, error) {
	final, err := tea.NewProgram(scaffoldModel{}).Run()
	if err != nil {
		return "", fmt.Errorf("template selector: %w", err)
	}
	return final.(scaffoldModel).choice, nil
}

// Scaffold writes a fresh meta.json for the named project into dir. The
// descriptor gets a generated ID and a section skeleton matching the
// template. Refuses to overwrite an existing descriptor.
func Scaffold(dir, name, template string) (*Meta, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}

	m := &Meta{
		ID:   xid.New().String(),
		Name: name,
		Type: template,
	}

	switch template {
	case "app":
		m.Docker = map[string]DockerBuild{
			"default": {Image: "registry.example.com/" + name, Context: "."},
		}
		m.Compose = map[string]ComposeConfig{
			"default": {File: "docker-compose.yaml"},
		}
	case "infra":
		m.Terraform = map[string]TerraformComponent{
			"core": {Path: "."},
		}
	case "library":
		// No deploy surface.
	default:
		return nil, fmt.Errorf("unknown template %q", template)
	}

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	m.Dir = dir
	return m, nil
}

package meta

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaffold(t *testing.T) {
	t.Run("app template gets docker and compose sections", func(t *testing.T) {
		dir := t.TempDir()
		m, err := Scaffold(dir, "api", "app")
		require.NoError(t, err)
		assert.NotEmpty(t, m.ID)

		loaded, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "api", loaded.Name)
		assert.Equal(t, "app", loaded.Type)
		assert.Contains(t, loaded.Docker, "default")
		assert.Contains(t, loaded.Compose, "default")
	})

	t.Run("infra template gets a terraform component", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Scaffold(dir, "network", "infra")
		require.NoError(t, err)

		loaded, err := Load(dir)
		require.NoError(t, err)
		assert.Contains(t, loaded.Terraform, "core")
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Scaffold(dir, "api", "library")
		require.NoError(t, err)

		_, err = Scaffold(dir, "api", "library")
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := Scaffold(t.TempDir(), "api", "microservice")
		assert.ErrorContains(t, err, "unknown template")
	})
}

func TestScaffoldModel(t *testing.T) {
	key := func(s string) tea.KeyMsg {
		if s == "enter" {
			return tea.KeyMsg{Type: tea.KeyEnter}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	t.Run("enter selects the highlighted template", func(t *testing.T) {
		var m tea.Model = scaffoldModel{}
		m, _ = m.Update(key("j"))
		m, _ = m.Update(key("enter"))
		assert.Equal(t, "infra", m.(scaffoldModel).choice)
	})

	t.Run("cursor clamps at the edges", func(t *testing.T) {
		var m tea.Model = scaffoldModel{}
		m, _ = m.Update(key("k"))
		assert.Equal(t, 0, m.(scaffoldModel).cursor)

		for range 10 {
			m, _ = m.Update(key("j"))
		}
		assert.Equal(t, len(Templates)-1, m.(scaffoldModel).cursor)
	})

	t.Run("q cancels without a choice", func(t *testing.T) {
		var m tea.Model = scaffoldModel{}
		m, _ = m.Update(key("q"))
		assert.Empty(t, m.(scaffoldModel).choice)
	})

	t.Run("view lists all templates", func(t *testing.T) {
		view := scaffoldModel{}.View()
		for _, tpl := range Templates {
			assert.Contains(t, view, tpl.Name)
		}
	})
}

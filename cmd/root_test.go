package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Groups(t *testing.T) {
	root := RootCommand()

	names := make(map[string]bool, len(root.Commands))
	for _, c := range root.Commands {
		names[c.Name] = true
	}

	for _, want := range []string{
		"docker", "terraform", "hasura", "action", "custom",
		"machine", "routine", "tunnel", "vault", "meta", "utils", "misc",
	} {
		assert.Contains(t, names, want)
	}
}

func TestDockerCommand_Subcommands(t *testing.T) {
	docker := DockerCommand()

	names := make(map[string]bool)
	var compose []string
	for _, c := range docker.Commands {
		names[c.Name] = true
		if c.Name == "compose" {
			for _, sub := range c.Commands {
				compose = append(compose, sub.Name)
			}
		}
	}

	assert.Contains(t, names, "build")
	assert.Contains(t, names, "register")
	assert.Contains(t, names, "pull")
	require.Contains(t, names, "compose")
	assert.ElementsMatch(t, []string{"up", "down", "build", "exec", "ps", "logs"}, compose)
}

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ghostmind-dev/run-sub002/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func testCommand() *cli.Command {
	return &cli.Command{
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: debugFlag},
			&cli.StringFlag{Name: targetFlag},
		},
	}
}

func TestLoadProject(t *testing.T) {
	t.Setenv("ENV", "")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meta.json"),
		[]byte(`{"id": "x", "name": "api", "type": "app"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CMD_TEST_VAR=from-env\n"), 0o644))

	nested := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	p, err := loadProject(testCommand())
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("CMD_TEST_VAR") })

	assert.Equal(t, "api", p.Meta.Name)
	assert.Equal(t, "local", p.Target)
	assert.Equal(t, "from-env", p.Env["CMD_TEST_VAR"])
	assert.Equal(t, "from-env", os.Getenv("CMD_TEST_VAR"))
	assert.Equal(t, "api-local", p.ComposeProject())
}

func TestLoadProjectNoDescriptor(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := loadProject(testCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), meta.FileName)
}

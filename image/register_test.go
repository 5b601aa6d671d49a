package image

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ghostmind-dev/run-sub002/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the command lines a registration issues, with canned
// responses per command prefix.
type recorder struct {
	commands []string
	captures map[string]string // prefix -> stdout
	failures map[string]error  // prefix -> error
}

func newRecorder() *recorder {
	return &recorder{
		captures: map[string]string{},
		failures: map[string]error{},
	}
}

func (r *recorder) registrar() *Registrar {
	lookup := func(line string) (string, error) {
		for prefix, err := range r.failures {
			if strings.HasPrefix(line, prefix) {
				return "", err
			}
		}
		for prefix, out := range r.captures {
			if strings.HasPrefix(line, prefix) {
				return out, nil
			}
		}
		return "", nil
	}
	return &Registrar{
		run: func(ctx context.Context, c *shell.Command) error {
			r.commands = append(r.commands, c.String())
			_, err := lookup(c.String())
			return err
		},
		capture: func(ctx context.Context, c *shell.Command) (string, error) {
			r.commands = append(r.commands, c.String())
			return lookup(c.String())
		},
	}
}

func (r *recorder) find(prefix string) string {
	for _, c := range r.commands {
		if strings.HasPrefix(c, prefix) {
			return c
		}
	}
	return ""
}

func TestRegisterLocal(t *testing.T) {
	rec := newRecorder()
	opts := Options{
		Image:     "registry.example.com/api",
		Archs:     []string{"amd64", "arm64"},
		BuildArgs: []string{"GIT_SHA=abc123"},
	}

	require.NoError(t, rec.registrar().Register(context.Background(), opts))

	t.Run("builds and pushes one image per arch", func(t *testing.T) {
		amd := rec.find("docker buildx build --platform linux/amd64")
		require.NotEmpty(t, amd)
		assert.Contains(t, amd, "-t registry.example.com/api:latest-amd64")
		assert.Contains(t, amd, "--push")
		assert.Contains(t, amd, "--build-arg GIT_SHA=abc123")

		arm := rec.find("docker buildx build --platform linux/arm64")
		require.NotEmpty(t, arm)
		assert.Contains(t, arm, "-t registry.example.com/api:latest-arm64")
	})

	t.Run("assembles and pushes the combined manifest", func(t *testing.T) {
		create := rec.find("docker manifest create")
		require.NotEmpty(t, create)
		assert.Contains(t, create, "registry.example.com/api:latest registry.example.com/api:latest-amd64 registry.example.com/api:latest-arm64")

		annotate := rec.find("docker manifest annotate --os linux --arch arm64")
		require.NotEmpty(t, annotate)
		assert.Contains(t, annotate, "--variant v8")

		assert.NotEmpty(t, rec.find("docker manifest push --purge registry.example.com/api:latest"))
	})
}

func TestRegisterAmendsExistingManifest(t *testing.T) {
	rec := newRecorder()
	rec.failures["docker manifest create registry"] = fmt.Errorf("docker: exit status 1: manifest already exists")

	opts := Options{Image: "registry.example.com/api", Archs: []string{"amd64"}}
	require.NoError(t, rec.registrar().Register(context.Background(), opts))

	assert.NotEmpty(t, rec.find("docker manifest create --amend registry.example.com/api:latest"))
}

func TestRegisterCreatesBuilderOnFirstUse(t *testing.T) {
	rec := newRecorder()
	rec.failures["docker buildx inspect run-multiarch"] = fmt.Errorf("no builder")

	opts := Options{Image: "registry.example.com/api", Archs: []string{"amd64"}}
	require.NoError(t, rec.registrar().Register(context.Background(), opts))

	assert.NotEmpty(t, rec.find("docker buildx create --name run-multiarch --use"))
	assert.NotEmpty(t, rec.find("docker buildx inspect --bootstrap"))
}

func TestRegisterDefaults(t *testing.T) {
	rec := newRecorder()
	require.NoError(t, rec.registrar().Register(context.Background(), Options{Image: "img"}))

	// Both default architectures are built when none are requested.
	assert.NotEmpty(t, rec.find("docker buildx build --platform linux/amd64"))
	assert.NotEmpty(t, rec.find("docker buildx build --platform linux/arm64"))
}

func TestRegisterRequiresImage(t *testing.T) {
	err := newRecorder().registrar().Register(context.Background(), Options{})
	assert.ErrorContains(t, err, "no image ref")
}

func TestBuildxCommandFlags(t *testing.T) {
	cmd := buildxCommand(Options{
		Image:      "img",
		Tag:        "v2",
		Context:    "./svc",
		Dockerfile: "svc/Dockerfile",
		NoCache:    true,
	}, "amd64")

	line := cmd.String()
	assert.Contains(t, line, "-t img:v2-amd64")
	assert.Contains(t, line, "-f svc/Dockerfile")
	assert.Contains(t, line, "--no-cache")
	assert.True(t, strings.HasSuffix(line, " ./svc"))
}

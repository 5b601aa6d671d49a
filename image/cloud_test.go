package image

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCloudConfig(t *testing.T) {
	cfg, err := cloudConfig(Options{Image: "img", Context: "."}, "arm64")
	require.NoError(t, err)

	var spec cloudBuildSpec
	require.NoError(t, yaml.Unmarshal(cfg, &spec))

	require.Len(t, spec.Steps, 1)
	assert.Equal(t, "gcr.io/cloud-builders/docker", spec.Steps[0].Name)
	assert.Equal(t, "buildx", spec.Steps[0].Args[0])
	assert.Contains(t, spec.Steps[0].Args, "linux/arm64")
	assert.Contains(t, spec.Steps[0].Args, "img:latest-arm64")
	assert.NotEmpty(t, spec.Timeout)
}

func TestCloudConfigPreservesSpacedBuildArgs(t *testing.T) {
	cfg, err := cloudConfig(Options{
		Image:     "img",
		Context:   ".",
		BuildArgs: []string{"GREETING=hello world"},
	}, "amd64")
	require.NoError(t, err)

	var spec cloudBuildSpec
	require.NoError(t, yaml.Unmarshal(cfg, &spec))
	require.Len(t, spec.Steps, 1)

	// The value must stay a single token and the context must stay last.
	args := spec.Steps[0].Args
	assert.Contains(t, args, "GREETING=hello world")
	assert.NotContains(t, args, "hello")
	assert.Equal(t, ".", args[len(args)-1])
}

func TestRegisterCloudSubmitsAndPolls(t *testing.T) {
	rec := newRecorder()
	rec.captures["gcloud builds submit"] = "build-123"
	rec.captures["gcloud builds describe build-123"] = "SUCCESS"

	opts := Options{Image: "img", Archs: []string{"amd64"}, Cloud: true}
	require.NoError(t, rec.registrar().Register(context.Background(), opts))

	assert.NotEmpty(t, rec.find("gcloud builds submit --async --config"))
	assert.NotEmpty(t, rec.find("gcloud builds describe build-123"))
	// Local buildx must not run when the build is delegated.
	assert.Empty(t, rec.find("docker buildx build"))
	// The combined manifest is still assembled locally.
	assert.NotEmpty(t, rec.find("docker manifest push"))
}

func TestRegisterCloudFailureStatus(t *testing.T) {
	rec := newRecorder()
	rec.captures["gcloud builds submit"] = "build-9"
	rec.captures["gcloud builds describe build-9"] = "FAILURE"

	opts := Options{Image: "img", Archs: []string{"amd64"}, Cloud: true}
	err := rec.registrar().Register(context.Background(), opts)
	assert.ErrorContains(t, err, "FAILURE")
}

package terraform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableKeys(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL": "postgres://x",
		"API_KEY":      "secret",
		"1BAD":         "nope",
		"WITH-DASH":    "nope",
		"":             "nope",
	}
	assert.Equal(t, []string{"API_KEY", "DATABASE_URL"}, VariableKeys(env))
}

func TestVarEnv(t *testing.T) {
	pairs := VarEnv(map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"TF_VAR_A=1", "TF_VAR_B=2"}, pairs)
}

func TestSpliceVariables(t *testing.T) {
	t.Run("appends a managed block when no markers exist", func(t *testing.T) {
		src := `resource "google_storage_bucket" "state" {}` + "\n"
		out, err := SpliceVariables(src, []string{"API_KEY"})
		require.NoError(t, err)

		assert.Contains(t, out, src)
		assert.Contains(t, out, startMarker)
		assert.Contains(t, out, `variable "API_KEY" {`)
		assert.Contains(t, out, endMarker)
	})

	t.Run("replaces only the content between the markers", func(t *testing.T) {
		src := "locals {}\n\n" + startMarker + "\nvariable \"OLD\" {}\n" + endMarker + "\n\noutput \"x\" {}\n"
		out, err := SpliceVariables(src, []string{"NEW_VAR"})
		require.NoError(t, err)

		assert.Contains(t, out, "locals {}")
		assert.Contains(t, out, "output \"x\" {}")
		assert.Contains(t, out, `variable "NEW_VAR" {`)
		assert.NotContains(t, out, `variable "OLD"`)
	})

	t.Run("is idempotent", func(t *testing.T) {
		keys := []string{"A", "B"}
		once, err := SpliceVariables("", keys)
		require.NoError(t, err)
		twice, err := SpliceVariables(once, keys)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("unbalanced markers are an error", func(t *testing.T) {
		_, err := SpliceVariables(startMarker+"\n", []string{"A"})
		assert.ErrorContains(t, err, "unbalanced")

		_, err = SpliceVariables(endMarker+"\n"+startMarker, []string{"A"})
		assert.ErrorContains(t, err, "unbalanced")
	})

	t.Run("values never appear in the spliced output", func(t *testing.T) {
		out, err := SpliceVariables("", VariableKeys(map[string]string{"SECRET": "hunter2"}))
		require.NoError(t, err)
		assert.False(t, strings.Contains(out, "hunter2"))
	})
}

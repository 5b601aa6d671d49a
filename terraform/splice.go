// Package terraform wraps the terraform CLI for the monorepo's components:
// init/plan/apply/destroy per component, variable declarations spliced into
// .tf files from the loaded environment, and remote-state lock files kept
// in object storage.
package terraform

import (
	"fmt"
	"sort"
	"strings"
)

const (
	startMarker = "# run:variables:start"
	endMarker   = "# run:variables:end"
)

// VariableKeys returns the env keys that become terraform variables,
// sorted. Keys that are not valid terraform identifiers are skipped.
func VariableKeys(env map[string]string) []string {
	var keys []string
	for k := range env {
		if validVarName(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func validVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// VarEnv renders env as TF_VAR_ pairs so terraform picks the values up at
// runtime. Values never land in the .tf files themselves.
func VarEnv(env map[string]string) []string {
	keys := VariableKeys(env)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, "TF_VAR_"+k+"="+env[k])
	}
	return pairs
}

// renderBlock generates the managed declarations between the markers.
func renderBlock(keys []string) string {
	var b strings.Builder
	b.WriteString(startMarker)
	b.WriteString("\n# Managed by run. Do not edit between the markers.\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "variable %q {\n  type    = string\n  default = null\n}\n", k)
	}
	b.WriteString(endMarker)
	return b.String()
}

// SpliceVariables replaces the comment-delimited managed block in src with
// declarations for keys, preserving everything outside the markers. When no
// markers are present a new block is appended. Re-running with the same
// keys is a no-op.
func SpliceVariables(src string, keys []string) (string, error) {
	block := renderBlock(keys)

	start := strings.Index(src, startMarker)
	end := strings.Index(src, endMarker)

	switch {
	case start < 0 && end < 0:
		out := src
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		if out != "" {
			out += "\n"
		}
		return out + block + "\n", nil
	case start < 0 || end < 0 || end < start:
		return "", fmt.Errorf("unbalanced %q / %q markers", startMarker, endMarker)
	default:
		return src[:start] + block + src[end+len(endMarker):], nil
	}
}

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getProjectRoot returns the absolute path to the project root.
func getProjectRoot(t *testing.T) string {
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	t.Fatal("go.mod not found")
	return ""
}

// buildBinary compiles the CLI into a temp dir and returns its path.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}
	binPath := filepath.Join(t.TempDir(), "leasekeeper-test")
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	buildCmd.Dir = filepath.Join(getProjectRoot(t), "cmd", "leasekeeper")
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))
	return binPath
}

// run executes the binary against a config path that does not exist, so
// defaults apply.
func run(t *testing.T, bin string, args ...string) (string, error) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	cmd := exec.Command(bin, append([]string{"--config", cfg}, args...)...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestMainEntryPoints(t *testing.T) {
	_ = main
}

func TestMainHelpFlag(t *testing.T) {
	bin := buildBinary(t)
	out, err := run(t, bin, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "leasekeeper")
	assert.Contains(t, out, "storage epochs")
}

func TestMainUnknownCommand(t *testing.T) {
	bin := buildBinary(t)
	out, err := run(t, bin, "unknown-command-xyz")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(out), "unknown")
}

func TestBinaryEpochs(t *testing.T) {
	bin := buildBinary(t)
	out, err := run(t, bin, "epochs", "14d", "--network", "mainnet")
	require.NoError(t, err)
	assert.Contains(t, out, "1 epochs")

	out, err = run(t, bin, "--json", "schedule")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_ms": 30000`)
}

func TestBinarySimulateRenew(t *testing.T) {
	bin := buildBinary(t)
	out, err := run(t, bin, "simulate", "renew", "--days", "10")
	require.NoError(t, err, out)
	assert.Contains(t, out, "lease renewed until")
}

//go:build acceptance

package acceptance

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func errdeckBin(t *testing.T) string {
	t.Helper()
	if bin := os.Getenv("ERRDECK_BIN"); bin != "" {
		return bin
	}
	return "errdeck"
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	bin := errdeckBin(t)
	cmd := exec.Command(bin, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			require.NoError(t, err, "failed to run %s %v", bin, args)
		}
	}
	return stdout.String(), stderr.String(), exitCode
}

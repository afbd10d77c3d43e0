// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestControlImportPurity ensures that the internal/control layer stays below the
// composition packages: shared middleware must never depend on the router or the daemon.
func TestControlImportPurity(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}

	cmd := exec.Command("go", "list", "-deps", "github.com/ManuGH/streamgate/internal/control/...")
	cmd.Env = append(os.Environ(), "GOWORK=off")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	require.NoError(t, err, "Failed to run go list -deps: %s", stderr.String())

	forbidden := []string{
		"github.com/ManuGH/streamgate/internal/api",
		"github.com/ManuGH/streamgate/internal/daemon",
		"github.com/ManuGH/streamgate/internal/gateway",
		"github.com/ManuGH/streamgate/internal/channels",
	}

	for _, d := range strings.Split(stdout.String(), "\n") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		for _, prefix := range forbidden {
			assert.False(t, strings.HasPrefix(d, prefix),
				"architecture violation: control layer depends on %q", d)
		}
	}
}

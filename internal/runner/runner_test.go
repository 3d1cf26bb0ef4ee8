package runner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecRunCapturesOutputAndExitCode(t *testing.T) {
	result, err := Exec{}.Run([]string{"sh", "-c", "echo out; echo err >&2; exit 3"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)
	require.Equal(t, "out\n", string(result.Stdout))
	require.Equal(t, "err\n", string(result.Stderr))
}

func TestExecRunSpawnFailureIsSpawnError(t *testing.T) {
	_, err := Exec{}.Run([]string{"/no/such/binary-xyz"}, nil)
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

func TestMergeEnvAppendsOnTopOfInherited(t *testing.T) {
	t.Setenv("APPDIRTOOL_TEST_VAR", "original")
	env := MergeEnv(map[string]string{"APPDIRTOOL_TEST_VAR": "overridden"})

	found := false
	for _, kv := range env {
		if kv == "APPDIRTOOL_TEST_VAR=overridden" {
			found = true
		}
	}
	require.True(t, found, "expected overridden value to be present in merged env")
}

func TestStripPathFallsBackToPATH(t *testing.T) {
	// Under `go test`, os.Executable() resolves to the compiled test
	// binary's own directory, which never has a colocated "strip"; this
	// exercises StripPath's $PATH fallback.
	require.Equal(t, "strip", StripPath())
}

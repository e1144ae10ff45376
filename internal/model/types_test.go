package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExecutionMode verifies the --dry-run flag conversion and rendering.
func TestExecutionMode(t *testing.T) {
	assert.Equal(t, Live, ModeFromDryRun(false))
	assert.Equal(t, DryRun, ModeFromDryRun(true))
	assert.True(t, DryRun.IsDryRun())
	assert.False(t, Live.IsDryRun())
	assert.Equal(t, "dry-run", DryRun.String())
	assert.Equal(t, "live", Live.String())
}

// TestParseLintMode verifies string-to-mode conversion,
// including case normalization and error cases.
func TestParseLintMode(t *testing.T) {
	tests := []struct {
		input    string
		expected LintMode
		hasError bool
	}{
		{"none", LintNone, false},
		{"basic", LintBasic, false},
		{"full", LintFull, false},
		{"FULL", LintFull, false},
		{" Basic ", LintBasic, false},
		{"strict", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseLintMode(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestLintMode_Set checks the pflag.Value implementation used by --lint.
func TestLintMode_Set(t *testing.T) {
	var m LintMode
	require.NoError(t, m.Set("basic"))
	assert.Equal(t, LintBasic, m)
	assert.Error(t, m.Set("bogus"))
	assert.Equal(t, LintBasic, m, "failed Set must not change the value")
	assert.Equal(t, "none|basic|full", m.Type())
}

// TestNewStartupFlags_RejectsFreshCombinations covers every combination
// of fresh with the flags it implies.
func TestNewStartupFlags_RejectsFreshCombinations(t *testing.T) {
	for mask := 1; mask < 8; mask++ {
		noCache := mask&1 != 0
		forcePull := mask&2 != 0
		forceRebuild := mask&4 != 0

		_, err := NewStartupFlags(true, noCache, forcePull, forceRebuild)
		require.Error(t, err, "mask %d", mask)

		var cliErr *CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, ExitConfigError, cliErr.Code)
		assert.Contains(t, cliErr.Message, "--fresh")
	}
}

// TestNewStartupFlags_Derived verifies the implied behaviors.
func TestNewStartupFlags_Derived(t *testing.T) {
	tests := []struct {
		name                                         string
		fresh, noCache, forcePull, rebuild           bool
		wantBypass, wantPull, wantFresh, wantRebuild bool
	}{
		{name: "defaults"},
		{name: "fresh", fresh: true, wantBypass: true, wantPull: true, wantFresh: true},
		{name: "no-cache", noCache: true, wantBypass: true},
		{name: "force-pull", forcePull: true, wantPull: true},
		{name: "force-rebuild", rebuild: true, wantRebuild: true},
		{name: "all but fresh", noCache: true, forcePull: true, rebuild: true, wantBypass: true, wantPull: true, wantRebuild: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewStartupFlags(tt.fresh, tt.noCache, tt.forcePull, tt.rebuild)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBypass, f.BypassBuildCache())
			assert.Equal(t, tt.wantPull, f.PullImages())
			assert.Equal(t, tt.wantFresh, f.Fresh())
			assert.Equal(t, tt.wantRebuild, f.ForceRebuild())
		})
	}
}

// TestStartupFlags_String checks the log rendering.
func TestStartupFlags_String(t *testing.T) {
	assert.Equal(t, "none", StartupFlags{}.String())
	f, err := NewStartupFlags(false, true, true, false)
	require.NoError(t, err)
	assert.Equal(t, "no-cache,force-pull", f.String())
}

// TestCLIError verifies error message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	t.Run("without underlying error", func(t *testing.T) {
		err := NewCLIError(ExitConfigError, "missing key")
		assert.Equal(t, "missing key", err.Error())
		assert.Equal(t, ExitConfigError, err.Code)
		assert.Nil(t, err.Unwrap())
	})

	t.Run("with underlying error", func(t *testing.T) {
		underlying := errors.New("exit status 1")
		err := WrapCLIError(ExitCommandFailed, "docker failed", underlying)
		assert.Equal(t, "docker failed: exit status 1", err.Error())
		assert.True(t, errors.Is(err, underlying))
	})
}

package analyze

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/undertaker/internal/types"
)

func TestParseConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `name: linux
model: models/x86.cnf.zst
timeout: 1m
query_timeout: 2s
exclude:
  - "scripts/**"
rules:
  code-undead:
    severity: off
  missing:
    severity: warning
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := ParseConfigurationFile(path)
	require.NoError(t, err)

	assert.Equal(t, "linux", config.Name)
	assert.Equal(t, "models/x86.cnf.zst", config.Model)
	assert.Equal(t, time.Minute, config.Timeout)
	assert.Equal(t, 2*time.Second, config.QueryTimeout)
	assert.Equal(t, []string{"scripts/**"}, config.Exclude)
	assert.Equal(t, "CONFIG_", config.Prefix)
	assert.Equal(t, []string{".c", ".h", ".S"}, config.Extensions)

	assert.Equal(t, tt.SeverityOff, config.Rules[tt.RuleCodeUndead].Severity)
	assert.Equal(t, tt.SeverityWarning, config.Rules[tt.RuleMissing].Severity)
	// untouched rules keep their defaults
	assert.Equal(t, tt.SeverityError, config.Rules[tt.RuleCodeDead].Severity)
	assert.Equal(t, tt.SeverityWarning, config.Rules[tt.RuleKconfigUndead].Severity)
}

func TestParseConfigurationFileErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "nmae: typo\n"},
		{"bad severity", "rules:\n  code-dead:\n    severity: loud\n"},
		{"bad duration", "timeout: soon\n"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, tc.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
			_, err := ParseConfigurationFile(path)
			assert.Error(t, err)
		})
	}

	_, err := ParseConfigurationFile(filepath.Join(dir, "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseEmptyConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	config, err := ParseConfigurationFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestWriteConfigurationFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)

	config := DefaultConfig()
	config.Model = "arm.cnf"
	config.Rules[tt.RuleCodeDead] = tt.ConfigRule{Severity: tt.SeverityInfo}
	require.NoError(t, WriteConfigurationFile(path, config))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "severity: INFO")
	assert.Contains(t, string(raw), "query_timeout: 10s")

	loaded, err := ParseConfigurationFile(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvModel, "mips.cnf")
	t.Setenv(EnvTimeout, "30s")

	config := DefaultConfig()
	require.NoError(t, config.ApplyEnv())
	assert.Equal(t, "mips.cnf", config.Model)
	assert.Equal(t, 30*time.Second, config.Timeout)

	t.Setenv(EnvTimeout, "later")
	assert.Error(t, config.ApplyEnv())
}

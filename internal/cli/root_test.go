package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command tree with args and returns what it wrote to
// stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "xfctl", cmd.Use)
	assert.Contains(t, cmd.Long, "batching")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"exec", "query", "shell", "config", "dialects"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "", "dialects", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, err.Error(), `format "xml"`)
}

func TestConfigCommand(t *testing.T) {
	out, _, err := execute(t, "", "config", "--dialect", "pgx", "--dsn", "postgres://localhost/app")
	require.NoError(t, err)
	assert.Contains(t, out, "dialect: postgres")
	assert.Contains(t, out, "dsn: postgres://localhost/app")
	assert.Contains(t, out, "batch_size: 200")

	_, _, err = execute(t, "", "config")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Contains(t, err.Error(), "dialect is required")

	_, _, err = execute(t, "", "config", "--config", "missing.yaml")
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestDialectsCommand(t *testing.T) {
	out, _, err := execute(t, "", "dialects")
	require.NoError(t, err)
	assert.Contains(t, out, "[Order Date]")
	assert.Contains(t, out, "`Order Date`")
	assert.Contains(t, out, "N'O''Brien'")
	assert.Contains(t, out, "TRUE")
	assert.Contains(t, out, "(4 rows)")

	out, _, err = execute(t, "", "dialects", "--sample", "--format", "json")
	require.NoError(t, err)
	resp := decode(t, out)
	rows := resp.Data.(map[string]any)["rows"].([]any)
	require.Len(t, rows, 4)
	mssql := rows[0].([]any)
	assert.Equal(t, "sqlserver", mssql[0])
	assert.Contains(t, mssql[5], "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY")
	sqlite := rows[3].([]any)
	assert.Equal(t, "sqlite", sqlite[0])
	assert.Contains(t, sqlite[5], "LIMIT 10 OFFSET 20")
}

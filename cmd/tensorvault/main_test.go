package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/tensorvault"
	"github.com/poiesic/tensorvault/ai/mock"
	"github.com/poiesic/tensorvault/core"
)

func findCommand(t *testing.T, app *cli.App, path ...string) *cli.Command {
	t.Helper()
	cmds := app.Commands
	var found *cli.Command
	for _, name := range path {
		found = nil
		for _, cmd := range cmds {
			if cmd.Name == name {
				found = cmd
				break
			}
		}
		require.NotNil(t, found, "command %s", name)
		cmds = found.Subcommands
	}
	return found
}

func findFlag[T cli.Flag](t *testing.T, cmd *cli.Command, name string) T {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(T); ok && slices.Contains(flag.Names(), name) {
			return f
		}
	}
	var zero T
	t.Fatalf("flag %s not found on %s", name, cmd.Name)
	return zero
}

func TestCommandFlags(t *testing.T) {
	app := newApp()

	t.Run("reembed defaults", func(t *testing.T) {
		cmd := findCommand(t, app, "reembed")
		assert.Equal(t, 100, findFlag[*cli.IntFlag](t, cmd, "batch-size").Value)
		assert.Equal(t, 100, findFlag[*cli.IntFlag](t, cmd, "report-interval").Value)
		assert.Equal(t, 3, findFlag[*cli.IntFlag](t, cmd, "max-retries").Value)
		assert.False(t, findFlag[*cli.BoolFlag](t, cmd, "only-missing").Value)
	})

	t.Run("embedding flags have no defaults", func(t *testing.T) {
		cmd := findCommand(t, app, "search")
		host := findFlag[*cli.StringFlag](t, cmd, "embedding-host")
		assert.Empty(t, host.Value)
		assert.Empty(t, host.EnvVars)
		assert.Empty(t, findFlag[*cli.StringFlag](t, cmd, "embedding-model").Value)
		assert.Equal(t, 10, findFlag[*cli.IntFlag](t, cmd, "limit").Value)
	})

	t.Run("seed file is required", func(t *testing.T) {
		cmd := findCommand(t, app, "seed")
		assert.True(t, findFlag[*cli.StringFlag](t, cmd, "file").Required)
		assert.Equal(t, "system", findFlag[*cli.StringFlag](t, cmd, "owner").Value)
	})

	t.Run("audit summary window", func(t *testing.T) {
		cmd := findCommand(t, app, "audit", "summary")
		assert.Equal(t, 24, findFlag[*cli.IntFlag](t, cmd, "hours").Value)
	})

	t.Run("db flag alias", func(t *testing.T) {
		cmd := findCommand(t, app, "jobs", "cleanup")
		assert.Equal(t, []string{"db", "d"}, findFlag[*cli.StringFlag](t, cmd, "db").Names())
	})
}

func TestParseSeedLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		wantErr bool
		want    [4]string
	}{
		{"full line", "knight|camelot|warrior|a brave knight", true, false, [4]string{"knight", "camelot", "warrior", "a brave knight"}},
		{"trims fields", "  baker | town |  | bakes bread ", true, false, [4]string{"baker", "town", "", "bakes bread"}},
		{"description keeps pipes", "bard|||sings a|b", true, false, [4]string{"bard", "", "", "sings a|b"}},
		{"blank", "   ", false, false, [4]string{}},
		{"comment", "# header", false, false, [4]string{}},
		{"too few fields", "knight|camelot", false, true, [4]string{}},
		{"empty entity", "|camelot|warrior|knight", false, true, [4]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt, ok, err := parseSeedLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, [4]string{nt.EntityID, nt.WorldID, nt.Category, nt.Description})
			assert.NotEmpty(t, nt.ID)
			assert.Equal(t, core.DefaultTensor(), nt.Tensor)
		})
	}
}

func TestLinesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	lines, err := linesFromFile(path)
	require.NoError(t, err)
	var got []string
	for line := range lines {
		got = append(got, line)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)

	_, err = linesFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	err := newApp().Run([]string{"tensorvault", "--log-level", "loud", "stats", "--db", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing database path", func(t *testing.T) {
		err := newApp().Run([]string{"tensorvault", "stats"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Path")
	})

	t.Run("bad config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bogus: true\n"), 0o644))
		err := newApp().Run([]string{"tensorvault", "--config", path, "stats", "--db", t.TempDir()})
		require.Error(t, err)
	})

	t.Run("flag overrides are validated", func(t *testing.T) {
		err := newApp().Run([]string{"tensorvault", "search", "--db", t.TempDir(), "--embedding-host", "not a url", "knight"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Host")
	})
}

// cliHarness runs commands against one database with a shared mock provider.
type cliHarness struct {
	t        *testing.T
	db       string
	provider *mock.MockProvider
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv("TENSORVAULT_EMBEDDING_DIMENSION", "8")
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	return &cliHarness{
		t:        t,
		db:       filepath.Join(t.TempDir(), "db"),
		provider: mock.NewMockProviderWithEmbedder(embedder).(*mock.MockProvider),
	}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp(tensorvault.WithProvider(h.provider))
	app.Writer = &out
	app.ErrWriter = io.Discard

	full := []string{"tensorvault", "--log-level", "error"}
	full = append(full, args[0])
	if len(args) > 1 && (args[0] == "jobs" || args[0] == "audit") {
		full = append(full, args[1])
		args = args[1:]
	}
	full = append(full, "--db", h.db)
	full = append(full, args[1:]...)
	err := app.Run(full)
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "tensorvault %s", strings.Join(args, " "))
	return out
}

func outputLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestCLIWorkflow(t *testing.T) {
	h := newCLIHarness(t)

	seedFile := filepath.Join(t.TempDir(), "seed.txt")
	require.NoError(t, os.WriteFile(seedFile, []byte(strings.Join([]string{
		"# entity|world|category|description",
		"knight|camelot|warrior|a brave knight",
		"baker|camelot|merchant|bakes bread at dawn",
		"",
		"dragon|wilds|monster|breathes fire",
	}, "\n")), 0o644))

	out := h.mustRun("seed", "--file", seedFile, "--owner", "alice")
	assert.Equal(t, "Added 3 tensors\n", out)

	listed := outputLines(h.mustRun("list"))
	require.Len(t, listed, 3)
	camelot := outputLines(h.mustRun("list", "--world", "camelot"))
	assert.Len(t, camelot, 2)
	dragon := outputLines(h.mustRun("list", "--entity", "dragon"))
	require.Len(t, dragon, 1)
	dragonID, _, _ := strings.Cut(dragon[0], "\t")

	out = h.mustRun("stats")
	assert.Contains(t, out, "Tensors:      3")
	assert.Contains(t, out, "In training:  3")

	out = h.mustRun("search", "--limit", "2", "knight")
	assert.Len(t, outputLines(out), 2)
	out = h.mustRun("search", "--category", "monster", "fire")
	require.Len(t, outputLines(out), 1)
	assert.Contains(t, out, dragonID)

	t.Run("train", func(t *testing.T) {
		out := h.mustRun("train", "--target", "0.3", "-w", "2", dragonID)
		assert.Contains(t, out, dragonID)
		assert.Contains(t, out, "ok")

		history := outputLines(h.mustRun("history", dragonID))
		assert.Greater(t, len(history), 1)
		assert.True(t, strings.HasPrefix(history[0], "v1\t"))

		assert.Empty(t, h.mustRun("jobs", "pending"))
		assert.Empty(t, h.mustRun("jobs", "running"))
		assert.Equal(t, "Released 0 stale jobs\n", h.mustRun("jobs", "cleanup", "--timeout", "1m"))

		_, err := h.run("train")
		assert.Error(t, err)
	})

	t.Run("reembed", func(t *testing.T) {
		out := h.mustRun("reembed", "--batch-size", "2")
		assert.Equal(t, "Re-embedded 3 tensors, indexed 3\n", out)

		_, err := h.run("reembed", "--batch-size", "0")
		assert.Error(t, err)
	})

	t.Run("audit", func(t *testing.T) {
		out := h.mustRun("audit", "summary", "--hours", "1", dragonID)
		assert.Contains(t, out, "Tensor:       "+dragonID+" (last 1h)")
		assert.Contains(t, out, "Total:        0")

		out = h.mustRun("audit", "cleanup", "--days", "7")
		assert.Equal(t, "Deleted 0 audit entries older than 7 days\n", out)

		_, err := h.run("audit", "summary")
		assert.Error(t, err)
	})

	t.Run("history of unknown tensor", func(t *testing.T) {
		_, err := h.run("history", "missing")
		assert.Error(t, err)
	})

	assert.True(t, h.provider.Closed())
}

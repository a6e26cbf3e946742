package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedConversation struct {
	inputs []string
	resets int
}

func (c *scriptedConversation) Handle(_ context.Context, _ string, input string) (string, error) {
	c.inputs = append(c.inputs, input)
	if input == "explode" {
		return "", errors.New("oracle unavailable")
	}
	return "ok: " + input, nil
}

func (c *scriptedConversation) Reset(string) { c.resets++ }

func TestRepl(t *testing.T) {
	conv := &scriptedConversation{}
	in := strings.NewReader("list my tasks\n\n/reset\nexplode\n/quit\nnever read\n")
	var out bytes.Buffer

	require.NoError(t, repl(context.Background(), conv, "cli", in, &out))

	assert.Equal(t, []string{"list my tasks", "explode"}, conv.inputs)
	assert.Equal(t, 1, conv.resets)
	assert.Contains(t, out.String(), "ok: list my tasks")
	assert.Contains(t, out.String(), "(conversation cleared)")
	assert.Contains(t, out.String(), "error: oracle unavailable")
}

func TestRepl_EOF(t *testing.T) {
	conv := &scriptedConversation{}
	var out bytes.Buffer
	require.NoError(t, repl(context.Background(), conv, "cli", strings.NewReader("hi"), &out))
	assert.Equal(t, []string{"hi"}, conv.inputs)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		forceInit = false
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "model: gemini-2.5-flash")

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "recordpilot vdev\n", out)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/recordpilot/internal/records"
	"github.com/HendryAvila/recordpilot/internal/sidelog"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		Store: records.Config{DataDir: dir, FileName: "records.db"},
		Owner: "Minh",
	}
}

func call(t *testing.T, opts Options, method string, params any, out any) {
	t.Helper()
	s, cleanup, err := New(opts)
	require.NoError(t, err)
	defer cleanup()

	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	resp := s.HandleMessage(context.Background(), raw)
	b, err := json.Marshal(resp)
	require.NoError(t, err)

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(b, &envelope), string(b))
	require.Nil(t, envelope.Error, string(b))
	require.NoError(t, json.Unmarshal(envelope.Result, out), string(b))
}

func TestNew_RegistersCatalog(t *testing.T) {
	var res struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	call(t, testOptions(t), "tools/list", nil, &res)

	var names []string
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_record", "read_record", "update_record", "delete_record",
		"list_records", "search_records_by_name", "get_database_stats",
		"log_thought", "add_reminder", "get_current_datetime", "get_morning_briefing",
		"confirm_create_with_empty_name", "confirm_create_with_corrected_field",
		"confirm_field_correction",
	}, names)
}

func TestNew_RegistersPromptsAndResources(t *testing.T) {
	opts := testOptions(t)

	var prompts struct {
		Prompts []struct {
			Name string `json:"name"`
		} `json:"prompts"`
	}
	call(t, opts, "prompts/list", nil, &prompts)
	require.Len(t, prompts.Prompts, 2)

	var resources struct {
		Resources []struct {
			URI string `json:"uri"`
		} `json:"resources"`
	}
	call(t, opts, "resources/list", nil, &resources)
	var uris []string
	for _, r := range resources.Resources {
		uris = append(uris, r.URI)
	}
	assert.ElementsMatch(t, []string{"records://schema", "records://stats", "records://reminders/today"}, uris)
}

func TestNew_ToolCallReachesStore(t *testing.T) {
	opts := testOptions(t)
	var res struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	call(t, opts, "tools/call", map[string]any{
		"name":      "create_record",
		"arguments": map[string]any{"table": "clients", "data": map[string]any{"name": "Acme"}},
	}, &res)
	require.NotEmpty(t, res.Content)
	assert.Contains(t, res.Content[0].Text, `"success":true`)

	b, cleanup, err := Open(opts)
	require.NoError(t, err)
	defer cleanup()
	n, err := b.Store.Count(context.Background(), "clients")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_SideLogDefaultsToDataDir(t *testing.T) {
	opts := testOptions(t)
	b, cleanup, err := Open(opts)
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, opts.Store.DataDir, b.Side.Dir())
	assert.Equal(t, filepath.Join(opts.Store.DataDir, "records.db"), b.Store.Path())
}

func TestOpen_Failures(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		orig := openStore
		t.Cleanup(func() { openStore = orig })
		openStore = func(records.Config) (*records.Store, error) { return nil, errors.New("disk full") }

		_, cleanup, err := Open(testOptions(t))
		assert.ErrorContains(t, err, "opening record store: disk full")
		cleanup()
	})
	t.Run("side log", func(t *testing.T) {
		orig := openSideLog
		t.Cleanup(func() { openSideLog = orig })
		openSideLog = func(string) (*sidelog.Log, error) { return nil, errors.New("read-only") }

		_, cleanup, err := Open(testOptions(t))
		assert.ErrorContains(t, err, "opening side log: read-only")
		cleanup()
	})
}

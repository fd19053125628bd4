package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndWalkEvents(t *testing.T) {
	c := New(t.TempDir())

	events := []json.RawMessage{
		json.RawMessage(`{"time":1}`),
		json.RawMessage(`{"time":2}`),
	}
	require.NoError(t, c.AppendEvents("0xABC", "fills", events))
	require.NoError(t, c.AppendEvents("0xabc", "fills", []json.RawMessage{json.RawMessage(`{"time":3}`)}))

	var seen []string
	err := c.EachEvent("0xabc", "fills", func(raw []byte) error {
		seen = append(seen, string(raw))
		return nil
	})
	require.NoError(t, err)
	// Address casing does not split the mirror.
	assert.Equal(t, []string{`{"time":1}`, `{"time":2}`, `{"time":3}`}, seen)
}

func TestEachEventMissingFile(t *testing.T) {
	c := New(t.TempDir())
	called := false
	err := c.EachEvent("0xnothing", "funding", func([]byte) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestUpdateMetadataMerges(t *testing.T) {
	c := New(t.TempDir())

	require.NoError(t, c.UpdateMetadata("0xabc", map[string]any{"last_fill_time_ms": 100}))
	require.NoError(t, c.UpdateMetadata("0xabc", map[string]any{"last_ledger_time_ms": 200}))

	var meta map[string]any
	ok, err := c.ReadJSON("0xabc", "meta.json", &meta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 100, meta["last_fill_time_ms"])
	assert.EqualValues(t, 200, meta["last_ledger_time_ms"])
}

func TestReadJSONMissing(t *testing.T) {
	c := New(t.TempDir())
	var out map[string]any
	ok, err := c.ReadJSON("0xabc", "fees.json", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	c := New(t.TempDir())

	payload := map[string]string{"userCrossRate": "0.00035"}
	require.NoError(t, c.WriteJSON("0xabc", "fees.json", payload))

	var out map[string]string
	ok, err := c.ReadJSON("0xabc", "fees.json", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, out)
}

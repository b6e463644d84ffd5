package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeIndexLocked, "index is locked by another process", nil).
		WithSuggestion("stop the other termsearch instance")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: index is locked by another process")
	assert.Contains(t, out, "Hint: stop the other termsearch instance")
	assert.Contains(t, out, "Code: ERR_207_INDEX_LOCKED")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForCLI_PlainErrorIsWrappedAsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
}

func TestFormatJSON(t *testing.T) {
	// Given: a retryable error with a cause and details
	err := UnavailableError("index unavailable", errors.New("circuit open")).
		WithDetail("graph_id", "g1")

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	// Then: all fields are present
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeIndexUnavailable, decoded["code"])
	assert.Equal(t, "NETWORK", decoded["category"])
	assert.Equal(t, true, decoded["retryable"])
	assert.Equal(t, "circuit open", decoded["cause"])
	assert.Equal(t, "g1", decoded["details"].(map[string]any)["graph_id"])
}

func TestFormatForLog(t *testing.T) {
	assert.Nil(t, FormatForLog(nil))
	assert.Equal(t, map[string]any{"error": "plain"}, FormatForLog(errors.New("plain")))

	fields := FormatForLog(MalformedNotification("bad").WithDetail("node_id", "x"))
	assert.Equal(t, ErrCodeMalformedNotification, fields["error_code"])
	assert.Equal(t, "x", fields["detail_node_id"])
}

package agtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScalar(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{"json object", `{"a":1}`, map[string]any{"a": float64(1)}},
		{"json array", `[1,2]`, []any{float64(1), float64(2)}},
		{"plain string passes through", "plain", "plain"},
		{"numeric text passes through", "42", "42"},
		{"tagged scalar passes through", "3.14::numeric", "3.14::numeric"},
		{"nested object", `{"a":{"b":[1]}}`, map[string]any{"a": map[string]any{"b": []any{float64(1)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeScalar(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeScalar_MalformedJSON(t *testing.T) {
	_, err := DecodeScalar(`{"a":}`)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, `{"a":}`, decodeErr.Text)
}

func TestDecodeRow(t *testing.T) {
	row := Row{
		Columns: []string{"v", "count", "note"},
		Values:  []any{`{"label":"Person"}::vertex`, int64(3), "no tag here"},
	}

	got, err := DecodeRow(row)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"label": "Person"}, got["v"])
	assert.Equal(t, int64(3), got["count"])
	assert.Equal(t, "no tag here", got["note"])
}

func TestDecodeRow_UnrecognizedTagPassesThrough(t *testing.T) {
	row := Row{Columns: []string{"n"}, Values: []any{"12::numeric"}}

	got, err := DecodeRow(row)
	require.NoError(t, err)
	assert.Equal(t, "12::numeric", got["n"])
}

func TestDecodeRow_MalformedPayload(t *testing.T) {
	row := Row{Columns: []string{"v"}, Values: []any{`{"label":}::vertex`}}

	_, err := DecodeRow(row)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeRows(t *testing.T) {
	rows := []Row{
		{Columns: []string{"v"}, Values: []any{`{"label":"City","properties":{"name":"NYC"}}::vertex`}},
		{Columns: []string{"v"}, Values: []any{`{"label":"City","properties":{"name":"Oslo"}}::vertex`}},
		{Columns: []string{"e"}, Values: []any{`{"label":"ROAD","start_id":1,"end_id":2,"properties":{}}::edge`}},
	}

	got, err := DecodeRows(rows)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "City", got[0]["label"])
	assert.Equal(t, map[string]any{"name": "NYC"}, got[0]["properties"])
	assert.Equal(t, "Oslo", got[1]["properties"].(map[string]any)["name"])
	assert.Equal(t, "ROAD", got[2]["label"])
}

func TestDecodeRows_NoTaggedValues(t *testing.T) {
	rows := []Row{
		{Columns: []string{"count"}, Values: []any{int64(1)}},
		{Columns: []string{"name"}, Values: []any{"plain string"}},
	}

	got, err := DecodeRows(rows)
	require.NoError(t, err)
	assert.Empty(t, got, "rows without tagged values decode to an empty batch")
}

func TestDecodeRows_Empty(t *testing.T) {
	got, err := DecodeRows(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeRows_OrderFollowsRowsThenColumns(t *testing.T) {
	rows := []Row{
		{Columns: []string{"a", "b"}, Values: []any{`{"label":"A","properties":{}}::vertex`, `{"label":"B","properties":{}}::vertex`}},
		{Columns: []string{"a"}, Values: []any{`{"label":"C","properties":{}}::vertex`}},
	}

	got, err := DecodeRows(rows)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0]["label"])
	assert.Equal(t, "B", got[1]["label"])
	assert.Equal(t, "C", got[2]["label"])
}

func TestDecodeRows_MalformedBatchAborts(t *testing.T) {
	rows := []Row{
		{Columns: []string{"v"}, Values: []any{`{"label":"OK","properties":{}}::vertex`}},
		{Columns: []string{"v"}, Values: []any{`{"label":broken}::vertex`}},
	}

	_, err := DecodeRows(rows)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

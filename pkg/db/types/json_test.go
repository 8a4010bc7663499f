package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type option struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

func TestJSONValueScanRoundTrip(t *testing.T) {
	in := NewJSON([]option{{ID: "opt-1", Price: "12.50"}})
	raw, err := in.Value()
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"opt-1","price":"12.50"}]`, raw)

	var out JSON[[]option]
	require.NoError(t, out.Scan([]byte(raw.(string))))
	assert.Equal(t, in.V, out.V)
}

func TestJSONScanNilResetsValue(t *testing.T) {
	out := NewJSON(&option{ID: "x"})
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out.V)
}

func TestJSONScanRejectsUnknownType(t *testing.T) {
	var out JSON[option]
	assert.Error(t, out.Scan(42))
}

package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	raw, err := Encode(3, KindFailure, 1700000000123, map[string]any{
		"encounter": 1,
		"dead":      Strings([]string{"Alice"}),
		"message":   "Party Failed to complete Crypt!",
	})
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), env.Seq)
	assert.Equal(t, KindFailure, env.Kind)
	assert.Equal(t, int64(1700000000123), env.TsMs)
	assert.Equal(t, 1.0, env.Data.GetFields()["encounter"].GetNumberValue())
	assert.Equal(t, "Alice", env.Data.GetFields()["dead"].GetListValue().GetValues()[0].GetStringValue())
}

func TestJSON(t *testing.T) {
	raw, err := Encode(1, KindStart, 10, map[string]any{"adventure": "Crypt"})
	require.NoError(t, err)

	out, err := JSON(raw)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "start", doc["kind"])
	assert.Equal(t, map[string]any{"adventure": "Crypt"}, doc["data"])
}

func TestEncodeRejectsUnsupportedValues(t *testing.T) {
	_, err := Encode(1, KindStart, 0, map[string]any{"bad": struct{}{}})
	assert.Error(t, err)

	_, err = Decode([]byte{0xff, 0xff})
	assert.Error(t, err)
}

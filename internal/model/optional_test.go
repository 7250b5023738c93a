package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalStringUnmarshal(t *testing.T) {
	tt := []struct {
		name    string
		payload string
		present bool
		clear   bool
		value   string
	}{
		{
			name:    "Missing",
			payload: `{}`,
		},
		{
			name:    "Null",
			payload: `{"city": null}`,
			present: true,
			clear:   true,
		},
		{
			name:    "Empty",
			payload: `{"city": ""}`,
			present: true,
		},
		{
			name:    "Value",
			payload: `{"city": "London"}`,
			present: true,
			value:   "London",
		},
	}

	for _, test := range tt {
		t.Run(test.name, func(t *testing.T) {
			var req struct {
				City OptionalString `json:"city"`
			}
			require.NoError(t, json.Unmarshal([]byte(test.payload), &req))

			assert.Equal(t, test.present, req.City.Present())
			assert.Equal(t, test.clear, req.City.IsClear())

			v, ok := req.City.Value()
			assert.Equal(t, test.present && !test.clear, ok)
			assert.Equal(t, test.value, v)
		})
	}
}

func TestOptionalStringInvalid(t *testing.T) {
	var req struct {
		City OptionalString `json:"city"`
	}
	err := json.Unmarshal([]byte(`{"city": 12}`), &req)
	require.Error(t, err)
}

func TestOptionalStringConstructors(t *testing.T) {
	var absent OptionalString
	assert.False(t, absent.Present())

	some := Some("Jo")
	v, ok := some.Value()
	assert.True(t, ok)
	assert.Equal(t, "Jo", v)
	assert.False(t, some.IsClear())

	clear := Clear()
	assert.True(t, clear.Present())
	assert.True(t, clear.IsClear())

	b, err := json.Marshal(map[string]OptionalString{"a": some, "b": clear})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": "Jo", "b": null}`, string(b))
}

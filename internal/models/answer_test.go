package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerValueEncodeDecodeRoundTrip(t *testing.T) {
	structured, err := StructuredOf([]string{"Engineering", "Design"})
	require.NoError(t, err)
	object, err := Structured(json.RawMessage(`{ "a": 1, "b": [true, null] }`))
	require.NoError(t, err)

	for _, v := range []AnswerValue{Scalar("yes"), Scalar(""), structured, object} {
		kind, payload := v.Encode()
		decoded, err := DecodeAnswer(kind, payload)
		require.NoError(t, err)
		assert.True(t, v.Equal(decoded), "value %s", v)
	}
	_, payload := object.Encode()
	assert.Equal(t, `{"a":1,"b":[true,null]}`, payload)
}

func TestDecodeAnswerRejectsUnknownKind(t *testing.T) {
	_, err := DecodeAnswer("blob", "x")
	require.Error(t, err)
}

func TestAnswerValueJSON(t *testing.T) {
	var m map[string]AnswerValue
	require.NoError(t, json.Unmarshal([]byte(`{"q1":" yes ","q2":["a","b"],"q3":null}`), &m))

	assert.Equal(t, AnswerScalar, m["q1"].Kind())
	assert.Equal(t, "yes", m["q1"].Normalized().String())
	assert.Equal(t, AnswerStructured, m["q2"].Kind())
	assert.Equal(t, "a, b", m["q2"].Display())
	assert.True(t, m["q3"].IsZero())

	out, err := json.Marshal(m["q2"])
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(out))
}

func TestAnswerValueIsBlank(t *testing.T) {
	empty, _ := Structured(json.RawMessage(`[]`))
	str, _ := Structured(json.RawMessage(`"x"`))

	assert.True(t, AnswerValue{}.IsBlank())
	assert.True(t, Scalar("  \n").IsBlank())
	assert.True(t, empty.IsBlank())
	assert.False(t, Scalar("no").IsBlank())
	assert.False(t, str.IsBlank())
	assert.Equal(t, "x", str.String())
}

func TestStringListParsing(t *testing.T) {
	assert.Equal(t, StringList{"Yes", "No"}, ParseStringList(`["Yes", "No", ""]`))
	assert.Equal(t, StringList{"Yes", "No"}, ParseStringList(`[“Yes”, No ,]`))
	assert.Equal(t, StringList{}, ParseStringList("  "))

	var l StringList
	require.NoError(t, l.Scan([]byte("a, b")))
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)
}

func TestResponseStatusRank(t *testing.T) {
	assert.True(t, StatusInProgress.Before(StatusSubmitted))
	assert.False(t, StatusApproved.Before(StatusSubmitted))
	assert.Equal(t, -1, ResponseStatus("bogus").Rank())
}

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommandFramesWithEOT(t *testing.T) {
	codec := NewCodec()

	data, err := codec.EncodeCommand(&Command{
		Kind:       CommandInsert,
		Database:   "db",
		Collection: "coll",
		Documents:  []Document{{"_id": 1}},
	})

	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, EOT, data[len(data)-1], "frame must end with EOT")
	assert.NotContains(t, string(data[:len(data)-1]), "\n", "no newline inside the frame")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &decoded))
	assert.Equal(t, "insert", decoded["cmd"])
	assert.Equal(t, "db", decoded["db"])
}

func TestEncodeCommandOmitsEmptyPayloadGroups(t *testing.T) {
	codec := NewCodec()

	data, err := codec.EncodeCommand(&Command{Kind: CommandPing})

	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &decoded))
	assert.NotContains(t, decoded, "documents")
	assert.NotContains(t, decoded, "updates")
	assert.NotContains(t, decoded, "deletes")
	assert.NotContains(t, decoded, "filter")
}

func TestEncodeCommandRejectsInvalid(t *testing.T) {
	codec := NewCodec()

	_, err := codec.EncodeCommand(nil)
	assert.Error(t, err)

	_, err = codec.EncodeCommand(&Command{})
	assert.Error(t, err, "kind is required")
}

func TestDecodeReplyFull(t *testing.T) {
	codec := NewCodec()
	frame := []byte(`{"ok":true,"n":3,"nModified":2,"upserted":[{"index":1,"_id":"u1"}],` +
		`"writeErrors":[{"index":2,"code":11000,"errmsg":"E11000 duplicate key"}]}` + "\x04")

	reply, err := codec.DecodeReply(frame)

	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.True(t, reply.Acknowledged, "acknowledged defaults to true")
	assert.Equal(t, int64(3), reply.N)
	require.NotNil(t, reply.NModified)
	assert.Equal(t, int64(2), *reply.NModified)
	require.Len(t, reply.Upserted, 1)
	assert.Equal(t, int64(1), reply.Upserted[0].Index)
	assert.Equal(t, "u1", reply.Upserted[0].ID)
	require.Len(t, reply.WriteErrors, 1)
	assert.Equal(t, CodeDuplicateKey, reply.WriteErrors[0].Code)
}

func TestDecodeReplyCoercesLegacyNumerics(t *testing.T) {
	codec := NewCodec()

	// Older servers emit ok as 1/0 and counts as strings.
	reply, err := codec.DecodeReply([]byte(`{"ok":1,"n":"5","code":"50"}`))

	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Equal(t, int64(5), reply.N)
	assert.Equal(t, CodeExceededTimeLimit, reply.Code)
}

func TestDecodeReplyNModifiedAbsentStaysNil(t *testing.T) {
	codec := NewCodec()

	reply, err := codec.DecodeReply([]byte(`{"ok":true,"n":2}`))

	require.NoError(t, err)
	assert.Nil(t, reply.NModified)
}

func TestDecodeReplyExplicitUnacknowledged(t *testing.T) {
	codec := NewCodec()

	reply, err := codec.DecodeReply([]byte(`{"ok":true,"acknowledged":false}`))

	require.NoError(t, err)
	assert.False(t, reply.Acknowledged)
}

func TestDecodeReplyMalformed(t *testing.T) {
	codec := NewCodec()

	cases := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"only EOT", []byte{EOT}},
		{"truncated JSON", []byte(`{"ok":tru`)},
		{"bad ok type", []byte(`{"ok":{"nested":1}}`)},
		{"bad n type", []byte(`{"ok":true,"n":"not-a-number"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.DecodeReply(tc.frame)
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec()
	ordered := true

	data, err := codec.EncodeCommand(&Command{
		Kind:       CommandUpdate,
		Database:   "db",
		Collection: "coll",
		Ordered:    &ordered,
		Updates: []UpdateSpec{
			{Filter: Document{"a": 1}, Update: Document{"$set": map[string]interface{}{"b": 2}}, Upsert: true},
		},
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &decoded))
	updates := decoded["updates"].([]interface{})
	require.Len(t, updates, 1)
	spec := updates[0].(map[string]interface{})
	assert.Equal(t, true, spec["upsert"])
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, spec["q"])
}

package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIDGeneratesWithoutMutating(t *testing.T) {
	original := Document{"name": "x"}

	out, id := ensureID(original)

	require.NotNil(t, id)
	assert.Equal(t, id, out["_id"])
	assert.NotContains(t, original, "_id")
	assert.Equal(t, "x", out["name"])
}

func TestEnsureIDUniquePerCall(t *testing.T) {
	_, id1 := ensureID(Document{})
	_, id2 := ensureID(Document{})
	assert.NotEqual(t, id1, id2)
}

func TestEnsureIDKeepsExisting(t *testing.T) {
	original := Document{"_id": 42}

	out, id := ensureID(original)

	assert.Equal(t, 42, id)
	// No copy needed when the id is already present.
	assert.Equal(t, Document(map[string]interface{}{"_id": 42}), out)
}

func TestValidateUpdateDocument(t *testing.T) {
	assert.NoError(t, validateUpdateDocument(Document{"$set": Document{"a": 1}}, "updateOne"))
	assert.NoError(t, validateUpdateDocument(Document{"$inc": Document{"n": 1}, "$unset": Document{"b": ""}}, "updateOne"))

	assert.Error(t, validateUpdateDocument(nil, "updateOne"))
	assert.Error(t, validateUpdateDocument(Document{}, "updateOne"))
	assert.Error(t, validateUpdateDocument(Document{"field": 1}, "updateOne"))
	assert.Error(t, validateUpdateDocument(Document{"$nosuch": Document{"a": 1}}, "updateOne"))
	assert.Error(t, validateUpdateDocument(Document{"$set": map[string]interface{}{}}, "updateOne"), "empty operand")
}

func TestValidateReplacementDocument(t *testing.T) {
	assert.NoError(t, validateReplacementDocument(Document{"a": 1, "b": 2}, "replaceOne"))
	assert.NoError(t, validateReplacementDocument(Document{}, "replaceOne"), "empty replacement wipes all fields")

	assert.Error(t, validateReplacementDocument(nil, "replaceOne"))
	assert.Error(t, validateReplacementDocument(Document{"$set": Document{"a": 1}}, "replaceOne"))
}

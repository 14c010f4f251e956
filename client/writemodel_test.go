package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeModelsExpandsInsertMany(t *testing.T) {
	models := []WriteModel{
		(&InsertOneModel{}).SetDocument(Document{"a": 1}),
		(&InsertManyModel{}).SetDocuments([]Document{{"b": 1}, {"b": 2}}),
		(&DeleteOneModel{}).SetFilter(Document{"a": 1}),
	}

	ops, err := normalizeModels(models)

	require.NoError(t, err)
	require.Len(t, ops, 4, "insert-many expands to one operation per document")
	for i, op := range ops {
		assert.Equal(t, i, op.index)
	}
	assert.Equal(t, opInsert, ops[0].kind)
	assert.Equal(t, opInsert, ops[1].kind)
	assert.Equal(t, opInsert, ops[2].kind)
	assert.Equal(t, opDelete, ops[3].kind)
}

func TestNormalizeModelsAssignsMissingIDs(t *testing.T) {
	doc := Document{"name": "no id"}
	ops, err := normalizeModels([]WriteModel{
		(&InsertOneModel{}).SetDocument(doc),
	})

	require.NoError(t, err)
	require.NotNil(t, ops[0].insertedID)
	assert.Equal(t, ops[0].insertedID, ops[0].document["_id"])
	// The caller's document is untouched.
	_, present := doc["_id"]
	assert.False(t, present)
}

func TestNormalizeModelsKeepsExistingID(t *testing.T) {
	doc := Document{"_id": "given", "name": "has id"}
	ops, err := normalizeModels([]WriteModel{
		(&InsertOneModel{}).SetDocument(doc),
	})

	require.NoError(t, err)
	assert.Equal(t, "given", ops[0].insertedID)
}

func TestNormalizeModelsUpdateFlags(t *testing.T) {
	ops, err := normalizeModels([]WriteModel{
		(&UpdateOneModel{}).SetFilter(Document{}).SetUpdate(Document{"$set": Document{"a": 1}}),
		(&UpdateManyModel{}).SetFilter(Document{}).SetUpdate(Document{"$inc": Document{"n": 1}}).SetUpsert(true),
		(&ReplaceOneModel{}).SetFilter(Document{}).SetReplacement(Document{"plain": true}),
		(&DeleteManyModel{}).SetFilter(Document{}),
	})

	require.NoError(t, err)
	assert.False(t, ops[0].update.Multi)
	assert.False(t, ops[0].update.Upsert)
	assert.True(t, ops[1].update.Multi)
	assert.True(t, ops[1].update.Upsert)
	assert.False(t, ops[2].update.Multi)
	assert.Equal(t, 0, ops[3].delete.Limit)
}

func TestNormalizeModelsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		models []WriteModel
	}{
		{"empty list", nil},
		{"nil model", []WriteModel{nil}},
		{"nil insert document", []WriteModel{&InsertOneModel{}}},
		{"empty insert many", []WriteModel{&InsertManyModel{}}},
		{"update without operators", []WriteModel{
			(&UpdateOneModel{}).SetFilter(Document{}).SetUpdate(Document{"plain": 1}),
		}},
		{"unknown operator", []WriteModel{
			(&UpdateOneModel{}).SetFilter(Document{}).SetUpdate(Document{"$frobnicate": Document{"a": 1}}),
		}},
		{"replacement with operator", []WriteModel{
			(&ReplaceOneModel{}).SetFilter(Document{}).SetReplacement(Document{"$set": Document{"a": 1}}),
		}},
		{"nil update filter", []WriteModel{
			(&UpdateOneModel{}).SetUpdate(Document{"$set": Document{"a": 1}}),
		}},
		{"nil delete filter", []WriteModel{&DeleteOneModel{}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeModels(tc.models)
			require.Error(t, err)
			var iae *InvalidArgumentError
			assert.ErrorAs(t, err, &iae)
		})
	}
}

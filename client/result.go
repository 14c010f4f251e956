package client

// BulkWriteResult aggregates the outcome of a bulk write across all batches.
type BulkWriteResult struct {
	// Acknowledged is false when any batch was accepted without
	// acknowledgement, which makes the counts lower bounds only.
	Acknowledged bool

	// InsertedCount is the number of documents inserted.
	InsertedCount int64

	// MatchedCount is the number of documents matched by update and
	// replace filters. Upserted documents are not counted as matched.
	MatchedCount int64

	// ModifiedCount is the number of documents actually changed by update
	// and replace operations. It is nil when the server omitted the
	// modified count for any batch, which distinguishes "unknown" from a
	// genuine zero.
	ModifiedCount *int64

	// DeletedCount is the number of documents deleted.
	DeletedCount int64

	// UpsertedCount is the number of documents upserted.
	UpsertedCount int64

	// UpsertedIDs maps the index of each upserting operation in the
	// caller's original sequence to the _id the server assigned.
	UpsertedIDs map[int64]interface{}
}

// InsertOneResult is the result of Collection.InsertOne.
type InsertOneResult struct {
	Acknowledged bool

	// InsertedID is the _id of the inserted document, generated
	// client-side when the document did not carry one.
	InsertedID interface{}
}

// InsertManyResult is the result of Collection.InsertMany.
type InsertManyResult struct {
	Acknowledged  bool
	InsertedCount int64

	// InsertedIDs holds the _id of each inserted document in input order.
	InsertedIDs []interface{}
}

// UpdateResult is the result of Collection.UpdateOne, UpdateMany and
// ReplaceOne.
type UpdateResult struct {
	Acknowledged  bool
	MatchedCount  int64
	ModifiedCount *int64
	UpsertedCount int64

	// UpsertedID is the _id of the upserted document, nil when no upsert
	// took place.
	UpsertedID interface{}
}

// DeleteResult is the result of Collection.DeleteOne and DeleteMany.
type DeleteResult struct {
	Acknowledged bool
	DeletedCount int64
}

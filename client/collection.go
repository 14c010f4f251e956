package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// Database is a handle to a named database.
type Database struct {
	client *Client
	name   string
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Collection returns a handle to the named collection.
func (d *Database) Collection(name string) *Collection {
	return &Collection{client: d.client, database: d.name, name: name}
}

// Collection is a handle to a named collection. All write methods delegate to
// the bulk execution engine, so a single insert takes the same path as a
// thousand-document bulk write.
type Collection struct {
	client   *Client
	database string
	name     string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Database returns the parent database handle.
func (c *Collection) Database() *Database {
	return &Database{client: c.client, name: c.database}
}

// BulkWrite executes the given write models. Ordered mode (the default) runs
// models in order and stops at the first error; unordered mode keeps going
// and reports every failure. The returned result is also populated on error,
// reflecting the operations that did succeed.
func (c *Collection) BulkWrite(ctx context.Context, models []WriteModel, opts ...*BulkWriteOptions) (*BulkWriteResult, error) {
	var opt *BulkWriteOptions
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}

	ops, err := normalizeModels(models)
	if err != nil {
		return nil, err
	}

	return c.execute(ctx, ops, opt.ordered())
}

// execute runs normalized operations through a fresh executor.
func (c *Collection) execute(ctx context.Context, ops []writeOp, ordered bool) (*BulkWriteResult, error) {
	exec := newBulkExecutor(
		c.client,
		c.database,
		c.name,
		ordered,
		c.client.opts.WriteConcern,
		c.client.logger.WithFields(
			String("database", c.database),
			String("collection", c.name),
		),
	)
	return exec.execute(ctx, ops)
}

// InsertOne inserts a single document. When the document has no _id, one is
// generated and returned; the caller's document is not mutated.
func (c *Collection) InsertOne(ctx context.Context, document Document) (*InsertOneResult, error) {
	if document == nil {
		return nil, ErrNilDocument("insertOne")
	}

	ops, err := normalizeModels([]WriteModel{
		(&InsertOneModel{}).SetDocument(document),
	})
	if err != nil {
		return nil, err
	}

	result, err := c.execute(ctx, ops, true)
	if err != nil {
		return nil, err
	}

	return &InsertOneResult{
		Acknowledged: result.Acknowledged,
		InsertedID:   ops[0].insertedID,
	}, nil
}

// InsertMany inserts the given documents. On partial failure the returned
// result still lists the ids of the documents that were inserted, alongside
// the error.
func (c *Collection) InsertMany(ctx context.Context, documents []Document, opts ...*InsertManyOptions) (*InsertManyResult, error) {
	var opt *InsertManyOptions
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}

	if len(documents) == 0 {
		return nil, ErrInvalidArgument("insertMany requires at least one document", nil)
	}

	ops, err := normalizeModels([]WriteModel{
		(&InsertManyModel{}).SetDocuments(documents),
	})
	if err != nil {
		return nil, err
	}

	result, err := c.execute(ctx, ops, opt.ordered())
	if err != nil {
		partial := &InsertManyResult{InsertedIDs: successfulInsertIDs(ops, err)}
		var bwe *BulkWriteException
		if errors.As(err, &bwe) {
			partial.Acknowledged = bwe.PartialResult.Acknowledged
			partial.InsertedCount = bwe.PartialResult.InsertedCount
		}
		return partial, err
	}

	ids := make([]interface{}, len(ops))
	for i, op := range ops {
		ids[i] = op.insertedID
	}
	return &InsertManyResult{
		Acknowledged:  result.Acknowledged,
		InsertedCount: result.InsertedCount,
		InsertedIDs:   ids,
	}, nil
}

// successfulInsertIDs filters the client-assigned ids down to the operations
// the server actually applied. Documents are inserted in caller order with
// failed indexes skipped, so the acknowledged count bounds the id list.
func successfulInsertIDs(ops []writeOp, err error) []interface{} {
	var bwe *BulkWriteException
	if !errors.As(err, &bwe) {
		return nil
	}

	failed := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		failed[we.Index] = true
	}

	applied := int(bwe.PartialResult.InsertedCount)
	ids := make([]interface{}, 0, applied)
	for _, op := range ops {
		if len(ids) == applied {
			break
		}
		if failed[op.index] {
			continue
		}
		ids = append(ids, op.insertedID)
	}
	return ids
}

// UpdateOne applies update operators to at most one document matching filter.
func (c *Collection) UpdateOne(ctx context.Context, filter, update Document, opts ...*UpdateOptions) (*UpdateResult, error) {
	return c.runUpdate(ctx, filter, update, false, updateUpsert(opts), "updateOne")
}

// UpdateMany applies update operators to every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter, update Document, opts ...*UpdateOptions) (*UpdateResult, error) {
	return c.runUpdate(ctx, filter, update, true, updateUpsert(opts), "updateMany")
}

func updateUpsert(opts []*UpdateOptions) bool {
	if len(opts) == 0 {
		return false
	}
	return opts[len(opts)-1].upsert()
}

func (c *Collection) runUpdate(ctx context.Context, filter, update Document, multi, upsert bool, operation string) (*UpdateResult, error) {
	if err := validateFilter(filter, operation); err != nil {
		return nil, err
	}
	if err := validateUpdateDocument(update, operation); err != nil {
		return nil, err
	}

	ops := []writeOp{{kind: opUpdate, index: 0, update: &protocol.UpdateSpec{
		Filter: filter,
		Update: update,
		Upsert: upsert,
		Multi:  multi,
	}}}

	result, err := c.execute(ctx, ops, true)
	if err != nil {
		return nil, err
	}
	return toUpdateResult(result), nil
}

// ReplaceOne replaces at most one document matching filter. The replacement
// must not contain update operators.
func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement Document, opts ...*ReplaceOptions) (*UpdateResult, error) {
	if err := validateFilter(filter, "replaceOne"); err != nil {
		return nil, err
	}
	if err := validateReplacementDocument(replacement, "replaceOne"); err != nil {
		return nil, err
	}

	upsert := false
	if len(opts) > 0 {
		upsert = opts[len(opts)-1].upsert()
	}

	ops := []writeOp{{kind: opUpdate, index: 0, update: &protocol.UpdateSpec{
		Filter: filter,
		Update: replacement,
		Upsert: upsert,
		Multi:  false,
	}}}

	result, err := c.execute(ctx, ops, true)
	if err != nil {
		return nil, err
	}
	return toUpdateResult(result), nil
}

func toUpdateResult(r *BulkWriteResult) *UpdateResult {
	out := &UpdateResult{
		Acknowledged:  r.Acknowledged,
		MatchedCount:  r.MatchedCount,
		ModifiedCount: r.ModifiedCount,
		UpsertedCount: r.UpsertedCount,
	}
	if id, ok := r.UpsertedIDs[0]; ok {
		out.UpsertedID = id
	}
	return out
}

// DeleteOne deletes at most one document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter Document) (*DeleteResult, error) {
	return c.runDelete(ctx, filter, 1, "deleteOne")
}

// DeleteMany deletes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter Document) (*DeleteResult, error) {
	return c.runDelete(ctx, filter, 0, "deleteMany")
}

func (c *Collection) runDelete(ctx context.Context, filter Document, limit int, operation string) (*DeleteResult, error) {
	if err := validateFilter(filter, operation); err != nil {
		return nil, err
	}

	ops := []writeOp{{kind: opDelete, index: 0, delete: &protocol.DeleteSpec{
		Filter: filter,
		Limit:  limit,
	}}}

	result, err := c.execute(ctx, ops, true)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{
		Acknowledged: result.Acknowledged,
		DeletedCount: result.DeletedCount,
	}, nil
}

// FindOne returns the first document matching filter, or ErrNoDocuments when
// nothing matches.
func (c *Collection) FindOne(ctx context.Context, filter Document) (Document, error) {
	if err := validateFilter(filter, "findOne"); err != nil {
		return nil, err
	}

	reply, err := c.client.RunCommand(ctx, &protocol.Command{
		Kind:       protocol.CommandFind,
		Database:   c.database,
		Collection: c.name,
		Filter:     filter,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}

	if !reply.OK {
		return nil, &ProtocolError{
			Code:    "COMMAND_FAILED",
			Type:    "PROTOCOL_ERROR",
			Message: fmt.Sprintf("find rejected: %s", reply.ErrMsg),
			Details: map[string]interface{}{"code": reply.Code},
		}
	}

	if len(reply.Docs) == 0 {
		return nil, ErrNoDocuments
	}
	return reply.Docs[0], nil
}

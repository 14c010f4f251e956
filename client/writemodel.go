package client

import (
	"fmt"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// WriteModel is the interface satisfied by models that can be passed to
// Collection.BulkWrite. The sealed method prevents implementations outside
// this package, so the executor can switch over the concrete types
// exhaustively.
type WriteModel interface {
	writeModel()
}

// InsertOneModel inserts a single document.
type InsertOneModel struct {
	Document Document
}

// SetDocument sets the document to insert.
func (m *InsertOneModel) SetDocument(doc Document) *InsertOneModel {
	m.Document = doc
	return m
}

func (*InsertOneModel) writeModel() {}

// InsertManyModel inserts several documents. It expands to one insert
// operation per document, each with its own position in the overall write
// sequence.
type InsertManyModel struct {
	Documents []Document
}

// SetDocuments sets the documents to insert.
func (m *InsertManyModel) SetDocuments(docs []Document) *InsertManyModel {
	m.Documents = docs
	return m
}

func (*InsertManyModel) writeModel() {}

// ReplaceOneModel replaces at most one document matching the filter.
type ReplaceOneModel struct {
	Filter      Document
	Replacement Document
	Upsert      *bool
	Sort        Document
	Collation   Document
}

// SetFilter sets the selection filter.
func (m *ReplaceOneModel) SetFilter(filter Document) *ReplaceOneModel {
	m.Filter = filter
	return m
}

// SetReplacement sets the replacement document.
func (m *ReplaceOneModel) SetReplacement(doc Document) *ReplaceOneModel {
	m.Replacement = doc
	return m
}

// SetUpsert configures insert-on-no-match behavior.
func (m *ReplaceOneModel) SetUpsert(upsert bool) *ReplaceOneModel {
	m.Upsert = &upsert
	return m
}

// SetSort selects which document is replaced when the filter matches several.
func (m *ReplaceOneModel) SetSort(sort Document) *ReplaceOneModel {
	m.Sort = sort
	return m
}

// SetCollation sets the collation used for filter matching.
func (m *ReplaceOneModel) SetCollation(collation Document) *ReplaceOneModel {
	m.Collation = collation
	return m
}

func (*ReplaceOneModel) writeModel() {}

// UpdateOneModel applies update operators to at most one matching document.
type UpdateOneModel struct {
	Filter    Document
	Update    Document
	Upsert    *bool
	Sort      Document
	Collation Document
}

// SetFilter sets the selection filter.
func (m *UpdateOneModel) SetFilter(filter Document) *UpdateOneModel {
	m.Filter = filter
	return m
}

// SetUpdate sets the update document.
func (m *UpdateOneModel) SetUpdate(update Document) *UpdateOneModel {
	m.Update = update
	return m
}

// SetUpsert configures insert-on-no-match behavior.
func (m *UpdateOneModel) SetUpsert(upsert bool) *UpdateOneModel {
	m.Upsert = &upsert
	return m
}

// SetSort selects which document is updated when the filter matches several.
func (m *UpdateOneModel) SetSort(sort Document) *UpdateOneModel {
	m.Sort = sort
	return m
}

// SetCollation sets the collation used for filter matching.
func (m *UpdateOneModel) SetCollation(collation Document) *UpdateOneModel {
	m.Collation = collation
	return m
}

func (*UpdateOneModel) writeModel() {}

// UpdateManyModel applies update operators to every matching document.
type UpdateManyModel struct {
	Filter    Document
	Update    Document
	Upsert    *bool
	Collation Document
}

// SetFilter sets the selection filter.
func (m *UpdateManyModel) SetFilter(filter Document) *UpdateManyModel {
	m.Filter = filter
	return m
}

// SetUpdate sets the update document.
func (m *UpdateManyModel) SetUpdate(update Document) *UpdateManyModel {
	m.Update = update
	return m
}

// SetUpsert configures insert-on-no-match behavior.
func (m *UpdateManyModel) SetUpsert(upsert bool) *UpdateManyModel {
	m.Upsert = &upsert
	return m
}

// SetCollation sets the collation used for filter matching.
func (m *UpdateManyModel) SetCollation(collation Document) *UpdateManyModel {
	m.Collation = collation
	return m
}

func (*UpdateManyModel) writeModel() {}

// DeleteOneModel deletes at most one document matching the filter.
type DeleteOneModel struct {
	Filter    Document
	Collation Document
}

// SetFilter sets the selection filter.
func (m *DeleteOneModel) SetFilter(filter Document) *DeleteOneModel {
	m.Filter = filter
	return m
}

// SetCollation sets the collation used for filter matching.
func (m *DeleteOneModel) SetCollation(collation Document) *DeleteOneModel {
	m.Collation = collation
	return m
}

func (*DeleteOneModel) writeModel() {}

// DeleteManyModel deletes every document matching the filter.
type DeleteManyModel struct {
	Filter    Document
	Collation Document
}

// SetFilter sets the selection filter.
func (m *DeleteManyModel) SetFilter(filter Document) *DeleteManyModel {
	m.Filter = filter
	return m
}

// SetCollation sets the collation used for filter matching.
func (m *DeleteManyModel) SetCollation(collation Document) *DeleteManyModel {
	m.Collation = collation
	return m
}

func (*DeleteManyModel) writeModel() {}

// opKind identifies the server command a normalized operation maps to.
type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

// commandKind returns the wire command the kind maps to.
func (k opKind) commandKind() protocol.CommandKind {
	switch k {
	case opInsert:
		return protocol.CommandInsert
	case opUpdate:
		return protocol.CommandUpdate
	case opDelete:
		return protocol.CommandDelete
	default:
		return protocol.CommandKind(fmt.Sprintf("opKind(%d)", int(k)))
	}
}

// String returns the command name for logging.
func (k opKind) String() string {
	return string(k.commandKind())
}

// writeOp is a single normalized write operation. index is the operation's
// position in the caller's expanded model sequence; every error and upsert
// reported back to the caller uses this index.
type writeOp struct {
	kind  opKind
	index int

	// opInsert
	document   Document
	insertedID interface{}

	// opUpdate
	update *protocol.UpdateSpec

	// opDelete
	delete *protocol.DeleteSpec
}

// normalizeModels validates the caller's models and flattens them into the
// ordered operation sequence the batcher consumes. InsertManyModel expands to
// one operation per document with consecutive indexes. Validation failures
// surface before any command is sent.
func normalizeModels(models []WriteModel) ([]writeOp, error) {
	if len(models) == 0 {
		return nil, ErrEmptyModelList()
	}

	ops := make([]writeOp, 0, len(models))
	next := 0

	for i, model := range models {
		switch m := model.(type) {
		case *InsertOneModel:
			if m.Document == nil {
				return nil, ErrNilDocument(fmt.Sprintf("insert model at position %d", i))
			}
			doc, id := ensureID(m.Document)
			ops = append(ops, writeOp{kind: opInsert, index: next, document: doc, insertedID: id})
			next++

		case *InsertManyModel:
			if len(m.Documents) == 0 {
				return nil, ErrInvalidArgument(
					fmt.Sprintf("insert-many model at position %d has no documents", i),
					map[string]interface{}{"position": i},
				)
			}
			for j, d := range m.Documents {
				if d == nil {
					return nil, ErrNilDocument(fmt.Sprintf("document %d of insert-many model at position %d", j, i))
				}
				doc, id := ensureID(d)
				ops = append(ops, writeOp{kind: opInsert, index: next, document: doc, insertedID: id})
				next++
			}

		case *UpdateOneModel:
			if err := validateFilter(m.Filter, "updateOne"); err != nil {
				return nil, err
			}
			if err := validateUpdateDocument(m.Update, "updateOne"); err != nil {
				return nil, err
			}
			ops = append(ops, writeOp{kind: opUpdate, index: next, update: &protocol.UpdateSpec{
				Filter:    m.Filter,
				Update:    m.Update,
				Upsert:    m.Upsert != nil && *m.Upsert,
				Multi:     false,
				Sort:      m.Sort,
				Collation: m.Collation,
			}})
			next++

		case *UpdateManyModel:
			if err := validateFilter(m.Filter, "updateMany"); err != nil {
				return nil, err
			}
			if err := validateUpdateDocument(m.Update, "updateMany"); err != nil {
				return nil, err
			}
			ops = append(ops, writeOp{kind: opUpdate, index: next, update: &protocol.UpdateSpec{
				Filter:    m.Filter,
				Update:    m.Update,
				Upsert:    m.Upsert != nil && *m.Upsert,
				Multi:     true,
				Collation: m.Collation,
			}})
			next++

		case *ReplaceOneModel:
			if err := validateFilter(m.Filter, "replaceOne"); err != nil {
				return nil, err
			}
			if err := validateReplacementDocument(m.Replacement, "replaceOne"); err != nil {
				return nil, err
			}
			ops = append(ops, writeOp{kind: opUpdate, index: next, update: &protocol.UpdateSpec{
				Filter:    m.Filter,
				Update:    m.Replacement,
				Upsert:    m.Upsert != nil && *m.Upsert,
				Multi:     false,
				Sort:      m.Sort,
				Collation: m.Collation,
			}})
			next++

		case *DeleteOneModel:
			if err := validateFilter(m.Filter, "deleteOne"); err != nil {
				return nil, err
			}
			ops = append(ops, writeOp{kind: opDelete, index: next, delete: &protocol.DeleteSpec{
				Filter:    m.Filter,
				Limit:     1,
				Collation: m.Collation,
			}})
			next++

		case *DeleteManyModel:
			if err := validateFilter(m.Filter, "deleteMany"); err != nil {
				return nil, err
			}
			ops = append(ops, writeOp{kind: opDelete, index: next, delete: &protocol.DeleteSpec{
				Filter:    m.Filter,
				Limit:     0,
				Collation: m.Collation,
			}})
			next++

		case nil:
			return nil, ErrInvalidArgument(
				fmt.Sprintf("write model at position %d is nil", i),
				map[string]interface{}{"position": i},
			)

		default:
			return nil, ErrInvalidArgument(
				fmt.Sprintf("unsupported write model type %T at position %d", model, i),
				map[string]interface{}{"position": i},
			)
		}
	}

	return ops, nil
}

package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// Document is the generic document type used throughout the driver.
type Document = protocol.Document

// idField is the reserved primary key field on every document.
const idField = "_id"

// updateOperators is the set of update operators the server accepts at the
// top level of an update document.
var updateOperators = map[string]struct{}{
	"$set":         {},
	"$unset":       {},
	"$inc":         {},
	"$mul":         {},
	"$min":         {},
	"$max":         {},
	"$rename":      {},
	"$currentDate": {},
	"$push":        {},
	"$pull":        {},
	"$pop":         {},
	"$addToSet":    {},
	"$setOnInsert": {},
}

// ensureID returns a document that is guaranteed to carry an _id. When the
// input already has one the input is returned unchanged; otherwise a shallow
// copy with a generated UUID _id is returned, along with the id that will be
// reported in the insert result. The caller's document is never mutated.
func ensureID(doc Document) (Document, interface{}) {
	if id, ok := doc[idField]; ok && id != nil {
		return doc, id
	}

	id := uuid.NewString()
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[idField] = id
	return out, id
}

// validateUpdateDocument checks that every top-level key of an update
// document is a recognized update operator with a non-empty operand.
func validateUpdateDocument(update Document, operation string) error {
	if update == nil {
		return ErrNilDocument(operation)
	}
	if len(update) == 0 {
		return ErrInvalidArgument(
			fmt.Sprintf("%s requires a non-empty update document", operation),
			map[string]interface{}{"operation": operation},
		)
	}

	for key, operand := range update {
		if !strings.HasPrefix(key, "$") {
			return ErrInvalidArgument(
				fmt.Sprintf("update document for %s may only contain update operators, found %q", operation, key),
				map[string]interface{}{"operation": operation, "key": key},
			)
		}
		if _, ok := updateOperators[key]; !ok {
			return ErrInvalidArgument(
				fmt.Sprintf("unknown update operator %q in %s", key, operation),
				map[string]interface{}{"operation": operation, "operator": key},
			)
		}
		if m, ok := operand.(map[string]interface{}); ok && len(m) == 0 {
			return ErrInvalidArgument(
				fmt.Sprintf("update operator %q in %s has an empty operand", key, operation),
				map[string]interface{}{"operation": operation, "operator": key},
			)
		}
	}

	return nil
}

// validateReplacementDocument checks that a replacement document contains no
// update operators at the top level.
func validateReplacementDocument(replacement Document, operation string) error {
	if replacement == nil {
		return ErrNilDocument(operation)
	}

	for key := range replacement {
		if strings.HasPrefix(key, "$") {
			return ErrInvalidArgument(
				fmt.Sprintf("replacement document for %s may not contain update operators, found %q", operation, key),
				map[string]interface{}{"operation": operation, "key": key},
			)
		}
	}

	return nil
}

// validateDocumentSizes rejects operations whose encoded document exceeds the
// server's per-document limit, before any command is sent. Only the payload
// document is measured; filters and operator overhead are the server's
// problem.
func validateDocumentSizes(ops []writeOp, maxBytes int) error {
	if maxBytes <= 0 {
		return nil
	}

	for _, op := range ops {
		var doc Document
		switch {
		case op.document != nil:
			doc = op.document
		case op.update != nil:
			doc = op.update.Update
		default:
			continue
		}

		encoded, err := json.Marshal(doc)
		if err != nil {
			return ErrInvalidArgument(
				fmt.Sprintf("document at operation %d cannot be encoded: %v", op.index, err),
				map[string]interface{}{"index": op.index},
			)
		}
		if len(encoded) > maxBytes {
			return ErrInvalidArgument(
				fmt.Sprintf("document at operation %d is %d bytes, exceeding the %d byte limit", op.index, len(encoded), maxBytes),
				map[string]interface{}{
					"index":      op.index,
					"sizeBytes":  len(encoded),
					"limitBytes": maxBytes,
				},
			)
		}
	}

	return nil
}

// validateFilter checks that a filter document is present. An empty filter is
// legal and matches every document.
func validateFilter(filter Document, operation string) error {
	if filter == nil {
		return ErrInvalidArgument(
			fmt.Sprintf("%s requires a non-nil filter", operation),
			map[string]interface{}{"operation": operation},
		)
	}
	return nil
}

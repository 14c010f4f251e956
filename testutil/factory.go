// Package testutil provides test data factories and scripted server replies
// for driver tests. Nothing here is imported by production code.
package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// Option is a function that modifies a generated document.
type Option func(protocol.Document)

// WithField sets a specific field value.
func WithField(name string, value interface{}) Option {
	return func(doc protocol.Document) {
		doc[name] = value
	}
}

// WithFields sets multiple field values.
func WithFields(fields map[string]interface{}) Option {
	return func(doc protocol.Document) {
		for k, v := range fields {
			doc[k] = v
		}
	}
}

// WithID sets the document's _id.
func WithID(id interface{}) Option {
	return func(doc protocol.Document) {
		doc["_id"] = id
	}
}

// DocumentFactory generates test documents with customizable options. Each
// built document gets a unique sequence number, so duplicate-free inputs are
// the default and collisions have to be asked for explicitly.
type DocumentFactory struct {
	defaults protocol.Document
	seq      atomic.Uint64
}

// NewDocumentFactory creates a factory seeded with default field values.
func NewDocumentFactory(defaults protocol.Document) *DocumentFactory {
	return &DocumentFactory{defaults: defaults}
}

// Build creates a single document with optional overrides.
func (f *DocumentFactory) Build(options ...Option) protocol.Document {
	n := f.seq.Add(1)

	doc := make(protocol.Document, len(f.defaults)+2)
	for k, v := range f.defaults {
		doc[k] = v
	}
	doc["name"] = fmt.Sprintf("doc-%d", n)
	doc["seq"] = n

	for _, opt := range options {
		opt(doc)
	}

	return doc
}

// BuildList creates multiple documents.
func (f *DocumentFactory) BuildList(count int, options ...Option) []protocol.Document {
	docs := make([]protocol.Document, count)
	for i := 0; i < count; i++ {
		docs[i] = f.Build(options...)
	}
	return docs
}

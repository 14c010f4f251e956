package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// Frame encodes a reply object as a wire frame: JSON terminated by EOT.
// Panics on marshal failure since test fixtures are always marshalable.
func Frame(reply map[string]interface{}) []byte {
	data, err := json.Marshal(reply)
	if err != nil {
		panic(fmt.Sprintf("testutil: failed to marshal reply fixture: %v", err))
	}
	return append(data, protocol.EOT)
}

// ReplyOption mutates a reply fixture before framing.
type ReplyOption func(map[string]interface{})

// WithNModified reports a modified count.
func WithNModified(n int64) ReplyOption {
	return func(r map[string]interface{}) {
		r["nModified"] = n
	}
}

// WithUpserted appends an upsert record. index is the operation's position
// within the command's payload, id the server-assigned _id.
func WithUpserted(index int64, id interface{}) ReplyOption {
	return func(r map[string]interface{}) {
		ups, _ := r["upserted"].([]interface{})
		r["upserted"] = append(ups, map[string]interface{}{
			"index": index,
			"_id":   id,
		})
	}
}

// WithWriteError appends a per-operation write error.
func WithWriteError(index, code int, errmsg string) ReplyOption {
	return func(r map[string]interface{}) {
		wes, _ := r["writeErrors"].([]interface{})
		r["writeErrors"] = append(wes, map[string]interface{}{
			"index":  index,
			"code":   code,
			"errmsg": errmsg,
		})
	}
}

// WithWriteConcernError attaches a write concern error.
func WithWriteConcernError(code int, errmsg string) ReplyOption {
	return func(r map[string]interface{}) {
		r["writeConcernError"] = map[string]interface{}{
			"code":   code,
			"errmsg": errmsg,
		}
	}
}

// WriteReply builds a successful write reply frame with the given n.
func WriteReply(n int64, opts ...ReplyOption) []byte {
	r := map[string]interface{}{
		"ok": true,
		"n":  n,
	}
	for _, opt := range opts {
		opt(r)
	}
	return Frame(r)
}

// FailureReply builds a command-level failure frame.
func FailureReply(code int, errmsg string) []byte {
	return Frame(map[string]interface{}{
		"ok":     false,
		"code":   code,
		"errmsg": errmsg,
	})
}

// HelloReply builds a handshake reply advertising the given limits. Passing
// nil advertises the defaults.
func HelloReply(limits *protocol.Limits) []byte {
	if limits == nil {
		def := protocol.DefaultLimits()
		limits = &def
	}
	return Frame(map[string]interface{}{
		"ok": true,
		"limits": map[string]interface{}{
			"maxWriteBatchSize":    limits.MaxWriteBatchSize,
			"maxDocumentSizeBytes": limits.MaxDocumentSizeBytes,
			"maxMessageSizeBytes":  limits.MaxMessageSizeBytes,
		},
	})
}

// PingReply builds a successful ping reply frame.
func PingReply() []byte {
	return Frame(map[string]interface{}{"ok": true})
}

// FindReply builds a find reply frame carrying the given documents.
func FindReply(docs ...protocol.Document) []byte {
	if docs == nil {
		docs = []protocol.Document{}
	}
	return Frame(map[string]interface{}{
		"ok":   true,
		"docs": docs,
	})
}

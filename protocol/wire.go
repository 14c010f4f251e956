// Package protocol provides encoding/decoding for the CorvusDB wire protocol
package protocol

// Document is the opaque document representation used across the driver.
// The driver only ever inspects top-level keys; everything else is passed
// through to the server verbatim.
type Document = map[string]interface{}

// CommandKind identifies the server command a message carries.
type CommandKind string

const (
	// CommandHello is the connection handshake command.
	CommandHello CommandKind = "hello"

	// CommandPing is a lightweight health check.
	CommandPing CommandKind = "ping"

	// CommandInsert carries a batch of documents to insert.
	CommandInsert CommandKind = "insert"

	// CommandUpdate carries a batch of update/replace specifications.
	CommandUpdate CommandKind = "update"

	// CommandDelete carries a batch of delete specifications.
	CommandDelete CommandKind = "delete"

	// CommandFind retrieves documents matching a filter.
	CommandFind CommandKind = "find"
)

// UpdateSpec is a single update or replace entry inside an update command.
// Multi selects update-many semantics; a replacement is distinguished from a
// modifier update by the absence of operator keys in U (validated client-side
// before the command is built).
type UpdateSpec struct {
	Filter    Document `json:"q"`
	Update    Document `json:"u"`
	Upsert    bool     `json:"upsert,omitempty"`
	Multi     bool     `json:"multi,omitempty"`
	Collation Document `json:"collation,omitempty"`
	Sort      Document `json:"sort,omitempty"`
}

// DeleteSpec is a single delete entry inside a delete command.
// Limit 1 removes at most one matching document; limit 0 removes all matches.
type DeleteSpec struct {
	Filter    Document `json:"q"`
	Limit     int      `json:"limit"`
	Collation Document `json:"collation,omitempty"`
}

// WriteConcern is the acknowledgment level requested for a write command.
type WriteConcern struct {
	W        interface{} `json:"w,omitempty"`
	WTimeout int64       `json:"wtimeoutMs,omitempty"`
	Journal  *bool       `json:"j,omitempty"`
}

// Command is a single client-to-server message. Exactly one of the
// kind-specific payload groups is populated depending on Kind.
type Command struct {
	Kind       CommandKind   `json:"cmd"`
	Database   string        `json:"db,omitempty"`
	Collection string        `json:"collection,omitempty"`

	// Write commands.
	Ordered      *bool         `json:"ordered,omitempty"`
	WriteConcern *WriteConcern `json:"writeConcern,omitempty"`
	Documents    []Document    `json:"documents,omitempty"`
	Updates      []UpdateSpec  `json:"updates,omitempty"`
	Deletes      []DeleteSpec  `json:"deletes,omitempty"`

	// Find commands.
	Filter Document `json:"filter,omitempty"`
	Limit  int      `json:"limit,omitempty"`

	// Hello handshake.
	ConnString      string `json:"connString,omitempty"`
	ProtocolVersion int    `json:"protocolVersion,omitempty"`
}

// Upsert reports a single upsert performed by an update command. Index is the
// position of the entry within the command's Updates slice, not the caller's
// operation sequence.
type Upsert struct {
	Index int64       `json:"index"`
	ID    interface{} `json:"_id"`
}

// WriteError is a per-operation failure inside an otherwise successful write
// command. Index is the position within the command's payload slice.
type WriteError struct {
	Index  int    `json:"index"`
	Code   int    `json:"code"`
	ErrMsg string `json:"errmsg"`
}

func (we WriteError) Error() string { return we.ErrMsg }

// WriteConcernError reports a failure acknowledging the write itself, as
// opposed to applying it.
type WriteConcernError struct {
	Code    int      `json:"code"`
	ErrMsg  string   `json:"errmsg"`
	Details Document `json:"errInfo,omitempty"`
}

func (wce WriteConcernError) Error() string { return wce.ErrMsg }

// Limits are the server-advertised operational limits, learned during the
// hello handshake.
type Limits struct {
	MaxWriteBatchSize    int `json:"maxWriteBatchSize"`
	MaxDocumentSizeBytes int `json:"maxDocumentSizeBytes"`
	MaxMessageSizeBytes  int `json:"maxMessageSizeBytes"`
}

// DefaultLimits are used until a handshake reports otherwise.
func DefaultLimits() Limits {
	return Limits{
		MaxWriteBatchSize:    1000,
		MaxDocumentSizeBytes: 16 * 1024 * 1024,
		MaxMessageSizeBytes:  48 * 1024 * 1024,
	}
}

// Reply is a decoded server response.
//
// For write commands N is the number of operations the server applied: for
// inserts, documents inserted; for updates, documents matched plus upserts
// performed; for deletes, documents removed. NModified is nil when the server
// did not report it, which is distinct from an explicit zero.
type Reply struct {
	OK           bool
	Acknowledged bool

	N         int64
	NModified *int64
	Upserted  []Upsert

	WriteErrors       []WriteError
	WriteConcernError *WriteConcernError

	// Find responses.
	Docs []Document

	// Top-level command failure (distinct from per-operation errors).
	Code   int
	ErrMsg string

	// Hello responses.
	Limits *Limits
}

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/corvusdb/corvusdb-go/mapper"
)

const (
	// EOT is the End of Transmission character used for message framing
	EOT byte = 0x04

	// PROTOCOL_VERSION is the current wire protocol version
	PROTOCOL_VERSION = 1
)

// Codec handles encoding and decoding of protocol messages
type Codec interface {
	// EncodeCommand serializes a command into wire format
	EncodeCommand(cmd *Command) ([]byte, error)

	// DecodeReply parses a raw message into a Reply
	DecodeReply(data []byte) (*Reply, error)
}

// JSONCodec implements the CorvusDB wire protocol: one JSON object per
// message, terminated by EOT.
type JSONCodec struct {
	// Buffer pool for encoding operations
	bufferPool sync.Pool
}

// NewCodec creates a new CorvusDB protocol codec
func NewCodec() Codec {
	return &JSONCodec{
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// EncodeCommand serializes a command into wire format
func (c *JSONCodec) EncodeCommand(cmd *Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("nil command")
	}
	if cmd.Kind == "" {
		return nil, fmt.Errorf("command kind is required")
	}

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", cmd.Kind, err)
	}

	// json.Encoder terminates with '\n'; replace it with the EOT frame marker.
	raw := buf.Bytes()
	if n := len(raw); n > 0 && raw[n-1] == '\n' {
		raw = raw[:n-1]
	}

	// Return a copy since we're reusing the buffer
	result := make([]byte, len(raw)+1)
	copy(result, raw)
	result[len(result)-1] = EOT
	return result, nil
}

// replyEnvelope is the lenient decode target for server replies. Counts are
// decoded as bare values and coerced afterwards so that servers emitting
// numbers as JSON floats or strings still round-trip correctly.
type replyEnvelope struct {
	OK           interface{}        `json:"ok"`
	Acknowledged *bool              `json:"acknowledged"`
	N            interface{}        `json:"n"`
	NModified    interface{}        `json:"nModified"`
	Upserted     []Upsert           `json:"upserted"`
	WriteErrors  []WriteError       `json:"writeErrors"`
	WCError      *WriteConcernError `json:"writeConcernError"`
	Docs         []Document         `json:"docs"`
	Code         interface{}        `json:"code"`
	ErrMsg       string             `json:"errmsg"`
	Limits       *Limits            `json:"limits"`
}

// DecodeReply parses a raw message into a Reply
func (c *JSONCodec) DecodeReply(data []byte) (*Reply, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty reply data")
	}

	// Remove trailing EOT if present
	if data[len(data)-1] == EOT {
		data = data[:len(data)-1]
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty reply frame")
	}

	var env replyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}

	reply := &Reply{
		Upserted:          env.Upserted,
		WriteErrors:       env.WriteErrors,
		WriteConcernError: env.WCError,
		Docs:              env.Docs,
		ErrMsg:            env.ErrMsg,
		Limits:            env.Limits,
	}

	ok, err := mapper.ToBool(env.OK)
	if err != nil {
		return nil, fmt.Errorf("malformed reply 'ok' field: %w", err)
	}
	reply.OK = ok

	// Replies are acknowledged unless the server says otherwise.
	reply.Acknowledged = env.Acknowledged == nil || *env.Acknowledged

	if env.N != nil {
		n, err := mapper.ToInt64(env.N)
		if err != nil {
			return nil, fmt.Errorf("malformed reply 'n' field: %w", err)
		}
		reply.N = n
	}

	if env.NModified != nil {
		nm, err := mapper.ToInt64(env.NModified)
		if err != nil {
			return nil, fmt.Errorf("malformed reply 'nModified' field: %w", err)
		}
		reply.NModified = &nm
	}

	if env.Code != nil {
		code, err := mapper.ToInt64(env.Code)
		if err != nil {
			return nil, fmt.Errorf("malformed reply 'code' field: %w", err)
		}
		reply.Code = int(code)
	}

	return reply, nil
}

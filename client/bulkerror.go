package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// ErrNoDocuments is returned by FindOne when the filter matched nothing.
var ErrNoDocuments = errors.New("no documents in result")

// BulkWriteException is returned when a bulk write completes with failures.
// It always carries the partial result: everything the server acknowledged
// before (and, in unordered mode, after) the failing operations counts.
type BulkWriteException struct {
	// PartialResult aggregates the successful portion of the write.
	PartialResult BulkWriteResult

	// WriteErrors holds per-operation failures. Index refers to the
	// operation's position in the caller's original sequence, not its
	// position within a batch.
	WriteErrors []protocol.WriteError

	// WriteConcernErrors holds write concern failures, at most one per
	// batch.
	WriteConcernErrors []protocol.WriteConcernError

	// Cause is set when execution stopped on a transport or protocol
	// failure rather than a server-reported write error.
	Cause error
}

// Error implements the error interface. Returns JSON format consistent with
// the driver's other error types.
func (e *BulkWriteException) Error() string {
	errorData := map[string]interface{}{
		"code":    "E_BULK_WRITE",
		"type":    "BULK_WRITE_ERROR",
		"message": e.summary(),
	}

	if len(e.WriteErrors) > 0 {
		errorData["write_errors"] = e.WriteErrors
	}

	if len(e.WriteConcernErrors) > 0 {
		errorData["write_concern_errors"] = e.WriteConcernErrors
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{
			"message": e.Cause.Error(),
		}
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *BulkWriteException) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("E_BULK_WRITE: %s (caused by: %s)", e.summary(), e.Cause.Error())
		}
		return fmt.Sprintf("E_BULK_WRITE: %s", e.summary())
	}

	errorData := map[string]interface{}{
		"code":    "E_BULK_WRITE",
		"type":    "BULK_WRITE_ERROR",
		"message": e.summary(),
		"partial_result": map[string]interface{}{
			"insertedCount": e.PartialResult.InsertedCount,
			"matchedCount":  e.PartialResult.MatchedCount,
			"deletedCount":  e.PartialResult.DeletedCount,
			"upsertedCount": e.PartialResult.UpsertedCount,
		},
	}

	if len(e.WriteErrors) > 0 {
		errorData["write_errors"] = e.WriteErrors
	}

	if len(e.WriteConcernErrors) > 0 {
		errorData["write_concern_errors"] = e.WriteConcernErrors
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the transport or protocol failure that aborted execution,
// nil when every failure was a server-reported write error.
func (e *BulkWriteException) Unwrap() error {
	return e.Cause
}

// HasWriteErrors reports whether any per-operation errors were recorded.
func (e *BulkWriteException) HasWriteErrors() bool {
	return len(e.WriteErrors) > 0
}

// HasWriteConcernErrors reports whether any write concern errors were
// recorded.
func (e *BulkWriteException) HasWriteConcernErrors() bool {
	return len(e.WriteConcernErrors) > 0
}

func (e *BulkWriteException) summary() string {
	parts := make([]string, 0, 3)
	if n := len(e.WriteErrors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d write error(s)", n))
	}
	if n := len(e.WriteConcernErrors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d write concern error(s)", n))
	}
	if e.Cause != nil {
		parts = append(parts, "execution aborted")
	}
	if len(parts) == 0 {
		return "bulk write failed"
	}
	return "bulk write failed: " + strings.Join(parts, ", ")
}

// duplicateKeyFragments are matched against error messages when a server
// predates structured duplicate key codes.
var duplicateKeyFragments = []string{
	"duplicate key",
	"E11000",
	"E11001",
	"E12582",
}

// IsDuplicateKeyError reports whether err was caused by a unique index
// violation. It recognizes the structured duplicate key codes and falls back
// to message inspection for older servers.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var bwe *BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			if isDuplicateKeyWriteError(we) {
				return true
			}
		}
		return false
	}

	return hasDuplicateKeyMessage(err.Error())
}

func isDuplicateKeyWriteError(we protocol.WriteError) bool {
	if protocol.IsDuplicateKeyCode(we.Code) {
		return true
	}
	// Message inspection is a fallback for servers that report no code; a
	// structured non-duplicate code always wins over the message text.
	return we.Code == 0 && hasDuplicateKeyMessage(we.ErrMsg)
}

func hasDuplicateKeyMessage(msg string) bool {
	for _, fragment := range duplicateKeyFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsIllegalOperationError reports whether err was caused by an operation that
// is invalid on the target collection, such as deleting from a capped
// collection. Falls back to message inspection when the server reported no
// code.
func IsIllegalOperationError(err error) bool {
	if err == nil {
		return false
	}

	var bwe *BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			if we.Code == protocol.CodeIllegalOperation {
				return true
			}
			if we.Code == 0 && strings.Contains(we.ErrMsg, "capped") {
				return true
			}
		}
		return false
	}

	return strings.Contains(err.Error(), "capped")
}

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// bulkState tracks where a bulk execution is in its lifecycle.
type bulkState int

const (
	// bulkPending indicates batches are built but nothing has been sent.
	bulkPending bulkState = iota
	// bulkSending indicates a batch command is in flight.
	bulkSending
	// bulkAggregating indicates a reply is being folded into the result.
	bulkAggregating
	// bulkDone indicates every batch completed without failures.
	bulkDone
	// bulkFailed indicates execution finished with write errors or aborted.
	bulkFailed
)

// String returns the string representation of the bulk state.
func (s bulkState) String() string {
	switch s {
	case bulkPending:
		return "PENDING"
	case bulkSending:
		return "SENDING"
	case bulkAggregating:
		return "AGGREGATING"
	case bulkDone:
		return "DONE"
	case bulkFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// commandRunner executes one command round trip. Client implements it; tests
// substitute their own.
type commandRunner interface {
	RunCommand(ctx context.Context, cmd *protocol.Command) (*protocol.Reply, error)
	WriteLimits() protocol.Limits
}

// bulkExecutor drives one bulk write: it sends batches sequentially and folds
// each reply into the aggregate result. An executor is single-use and not
// safe for concurrent use.
type bulkExecutor struct {
	runner     commandRunner
	database   string
	collection string
	ordered    bool
	wc         *protocol.WriteConcern
	logger     Logger

	state bulkState

	// Aggregation state. modifiedKnown flips to false permanently when any
	// batch reply omits the modified count.
	result        BulkWriteResult
	modifiedTotal int64
	modifiedKnown bool

	writeErrors        []protocol.WriteError
	writeConcernErrors []protocol.WriteConcernError
	cause              error
}

func newBulkExecutor(runner commandRunner, database, collection string, ordered bool, wc *protocol.WriteConcern, logger Logger) *bulkExecutor {
	return &bulkExecutor{
		runner:        runner,
		database:      database,
		collection:    collection,
		ordered:       ordered,
		wc:            wc,
		logger:        logger,
		state:         bulkPending,
		modifiedKnown: true,
		result: BulkWriteResult{
			Acknowledged: true,
			UpsertedIDs:  make(map[int64]interface{}),
		},
	}
}

// transitionTo moves the executor to a new state, enforcing the legal
// lifecycle: PENDING -> SENDING <-> AGGREGATING -> DONE|FAILED, with SENDING
// allowed to fail directly on transport errors.
func (e *bulkExecutor) transitionTo(next bulkState) {
	legal := false
	switch e.state {
	case bulkPending:
		legal = next == bulkSending || next == bulkDone || next == bulkFailed
	case bulkSending:
		legal = next == bulkAggregating || next == bulkFailed
	case bulkAggregating:
		legal = next == bulkSending || next == bulkDone || next == bulkFailed
	}
	if !legal {
		panic(fmt.Sprintf("illegal bulk state transition: %s -> %s", e.state, next))
	}
	e.state = next
}

// execute runs the normalized operations and returns the aggregate result.
// On failure the returned *BulkWriteException carries the same result as its
// PartialResult, so callers can see what succeeded.
func (e *bulkExecutor) execute(ctx context.Context, ops []writeOp) (*BulkWriteResult, error) {
	limits := e.runner.WriteLimits()
	if err := validateDocumentSizes(ops, limits.MaxDocumentSizeBytes); err != nil {
		return nil, err
	}

	batches := buildBatches(ops, e.ordered, limits.MaxWriteBatchSize)

	e.logger.Debug("bulk write starting",
		Int("operations", len(ops)),
		Int("batches", len(batches)),
		Bool("ordered", e.ordered),
	)

	for i, batch := range batches {
		e.transitionTo(bulkSending)

		cmd := batch.command(e.database, e.collection, e.ordered, e.wc)
		reply, err := e.runner.RunCommand(ctx, cmd)
		if err != nil {
			e.cause = e.classifyTransportFailure(err, batch)
			e.transitionTo(bulkFailed)
			e.logger.Warn("bulk write aborted",
				Int("batch", i+1),
				Int("batches", len(batches)),
				Error("error", err),
			)
			return e.finish()
		}

		e.transitionTo(bulkAggregating)
		stop := e.mergeReply(batch, reply)

		e.logger.Debug("batch aggregated",
			Int("batch", i+1),
			Int("batches", len(batches)),
			String("kind", batch.kind.String()),
			Int("operations", len(batch.ops)),
			Int64("n", reply.N),
			Int("writeErrors", len(reply.WriteErrors)),
		)

		if stop {
			break
		}
	}

	return e.finish()
}

// classifyTransportFailure wraps a transport or protocol failure. Deadline
// expiry is additionally recorded as a write concern timeout so callers that
// only inspect the exception's write concern errors still see it.
func (e *bulkExecutor) classifyTransportFailure(err error, batch writeBatch) error {
	timedOut := errors.Is(err, context.DeadlineExceeded)
	if !timedOut {
		var terr *protocol.TransportError
		if errors.As(err, &terr) {
			timedOut = terr.Code == protocol.ErrorCodeTimeout
		}
	}

	if timedOut {
		e.writeConcernErrors = append(e.writeConcernErrors, protocol.WriteConcernError{
			Code:   protocol.CodeExceededTimeLimit,
			ErrMsg: fmt.Sprintf("%s batch timed out waiting for acknowledgement", batch.kind),
		})
	}

	return err
}

// mergeReply folds one batch reply into the aggregate result and reports
// whether execution must stop.
func (e *bulkExecutor) mergeReply(batch writeBatch, reply *protocol.Reply) bool {
	indexes := batch.indexes()

	// Command-level failure: the whole batch was rejected before any
	// operation ran. Attribute it to the batch's first operation.
	if !reply.OK && len(reply.WriteErrors) == 0 {
		e.writeErrors = append(e.writeErrors, protocol.WriteError{
			Index:  indexes[0],
			Code:   reply.Code,
			ErrMsg: reply.ErrMsg,
		})
		if e.ordered {
			e.transitionTo(bulkFailed)
			return true
		}
		return false
	}

	if !reply.Acknowledged {
		e.result.Acknowledged = false
	}

	switch batch.kind {
	case opInsert:
		e.result.InsertedCount += reply.N

	case opUpdate:
		for _, up := range reply.Upserted {
			// up.Index is the operation's position within this batch.
			if up.Index >= 0 && int(up.Index) < len(indexes) {
				e.result.UpsertedIDs[int64(indexes[up.Index])] = up.ID
			}
			e.result.UpsertedCount++
		}
		// The server's n for updates counts matched plus upserted.
		matched := reply.N - int64(len(reply.Upserted))
		if matched < 0 {
			matched = 0
		}
		e.result.MatchedCount += matched

		if reply.NModified == nil {
			e.modifiedKnown = false
		} else if e.modifiedKnown {
			e.modifiedTotal += *reply.NModified
		}

	case opDelete:
		e.result.DeletedCount += reply.N
	}

	for _, we := range reply.WriteErrors {
		remapped := we
		if we.Index >= 0 && we.Index < len(indexes) {
			remapped.Index = indexes[we.Index]
		}
		e.writeErrors = append(e.writeErrors, remapped)
	}

	if reply.WriteConcernError != nil {
		e.writeConcernErrors = append(e.writeConcernErrors, *reply.WriteConcernError)
	}

	if e.ordered && len(reply.WriteErrors) > 0 {
		e.transitionTo(bulkFailed)
		return true
	}
	return false
}

// finish seals the result and, when anything failed, wraps it in a
// BulkWriteException.
func (e *bulkExecutor) finish() (*BulkWriteResult, error) {
	if e.modifiedKnown {
		modified := e.modifiedTotal
		e.result.ModifiedCount = &modified
	}

	failed := len(e.writeErrors) > 0 || len(e.writeConcernErrors) > 0 || e.cause != nil
	if !failed {
		if e.state != bulkDone {
			e.transitionTo(bulkDone)
		}
		return &e.result, nil
	}

	if e.state != bulkFailed {
		e.transitionTo(bulkFailed)
	}

	return &e.result, &BulkWriteException{
		PartialResult:      e.result,
		WriteErrors:        e.writeErrors,
		WriteConcernErrors: e.writeConcernErrors,
		Cause:              e.cause,
	}
}

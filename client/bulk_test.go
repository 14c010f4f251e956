package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// fakeRunner scripts replies per command, in order.
type fakeRunner struct {
	limits   protocol.Limits
	replies  []*protocol.Reply
	errs     []error
	commands []*protocol.Command
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{limits: protocol.DefaultLimits()}
}

func (f *fakeRunner) reply(r *protocol.Reply) *fakeRunner {
	// Replies are acknowledged unless a test opts out explicitly.
	r.Acknowledged = true
	f.replies = append(f.replies, r)
	f.errs = append(f.errs, nil)
	return f
}

func (f *fakeRunner) unackedReply(r *protocol.Reply) *fakeRunner {
	f.replies = append(f.replies, r)
	f.errs = append(f.errs, nil)
	return f
}

func (f *fakeRunner) fail(err error) *fakeRunner {
	f.replies = append(f.replies, nil)
	f.errs = append(f.errs, err)
	return f
}

func (f *fakeRunner) RunCommand(ctx context.Context, cmd *protocol.Command) (*protocol.Reply, error) {
	i := len(f.commands)
	f.commands = append(f.commands, cmd)
	if i >= len(f.replies) {
		return nil, errors.New("no scripted reply")
	}
	return f.replies[i], f.errs[i]
}

func (f *fakeRunner) WriteLimits() protocol.Limits {
	return f.limits
}

func insertOps(n int) []writeOp {
	ops := make([]writeOp, n)
	for i := range ops {
		ops[i] = writeOp{kind: opInsert, index: i, document: Document{"_id": i}, insertedID: i}
	}
	return ops
}

func runExecutor(t *testing.T, runner *fakeRunner, ordered bool, ops []writeOp) (*BulkWriteResult, error) {
	t.Helper()
	exec := newBulkExecutor(runner, "testdb", "things", ordered, nil, NewNoopLogger())
	return exec.execute(context.Background(), ops)
}

func TestBulkExecutorOrderedStopsAtFirstError(t *testing.T) {
	// Four inserts where the last duplicates an earlier document: the
	// server applies three and reports the failure at position 3.
	runner := newFakeRunner().reply(&protocol.Reply{
		OK: true,
		N:  3,
		WriteErrors: []protocol.WriteError{
			{Index: 3, Code: protocol.CodeDuplicateKey, ErrMsg: "E11000 duplicate key"},
		},
	})

	result, err := runExecutor(t, runner, true, insertOps(4))

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	assert.Equal(t, int64(3), result.InsertedCount)
	require.Len(t, bwe.WriteErrors, 1)
	assert.Equal(t, 3, bwe.WriteErrors[0].Index)
	assert.Equal(t, int64(3), bwe.PartialResult.InsertedCount)
}

func TestBulkExecutorOrderedDoesNotSendLaterBatches(t *testing.T) {
	// insert, insert, delete: the insert batch fails, so the delete
	// batch must never reach the server.
	ops := []writeOp{
		{kind: opInsert, index: 0, document: Document{"_id": "a"}, insertedID: "a"},
		{kind: opInsert, index: 1, document: Document{"_id": "a"}, insertedID: "a"},
		{kind: opDelete, index: 2, delete: &protocol.DeleteSpec{Filter: Document{}, Limit: 1}},
	}

	runner := newFakeRunner().reply(&protocol.Reply{
		OK: true,
		N:  1,
		WriteErrors: []protocol.WriteError{
			{Index: 1, Code: protocol.CodeDuplicateKey, ErrMsg: "E11000 duplicate key"},
		},
	})

	result, err := runExecutor(t, runner, true, ops)

	require.Error(t, err)
	assert.Len(t, runner.commands, 1)
	assert.Equal(t, protocol.CommandInsert, runner.commands[0].Kind)
	assert.Equal(t, int64(1), result.InsertedCount)
	assert.Equal(t, int64(0), result.DeletedCount)
}

func TestBulkExecutorUnorderedContinuesPastErrors(t *testing.T) {
	// Four inserts where position 2 duplicates position 1: the other
	// three are applied and the error is reported at index 2.
	runner := newFakeRunner().reply(&protocol.Reply{
		OK: true,
		N:  3,
		WriteErrors: []protocol.WriteError{
			{Index: 2, Code: protocol.CodeDuplicateKey, ErrMsg: "E11000 duplicate key"},
		},
	})

	result, err := runExecutor(t, runner, false, insertOps(4))

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	assert.Equal(t, int64(3), result.InsertedCount)
	require.Len(t, bwe.WriteErrors, 1)
	assert.Equal(t, 2, bwe.WriteErrors[0].Index)
}

func TestBulkExecutorRemapsBatchLocalIndexes(t *testing.T) {
	// delete, then two inserts: the insert batch's local positions are 0
	// and 1, but errors must surface at caller positions 1 and 2.
	ops := []writeOp{
		{kind: opDelete, index: 0, delete: &protocol.DeleteSpec{Filter: Document{}, Limit: 1}},
		{kind: opInsert, index: 1, document: Document{"_id": "x"}, insertedID: "x"},
		{kind: opInsert, index: 2, document: Document{"_id": "x"}, insertedID: "x"},
	}

	runner := newFakeRunner().
		reply(&protocol.Reply{OK: true, N: 1}).
		reply(&protocol.Reply{
			OK: true,
			N:  1,
			WriteErrors: []protocol.WriteError{
				{Index: 1, Code: protocol.CodeDuplicateKey, ErrMsg: "E11000 duplicate key"},
			},
		})

	result, err := runExecutor(t, runner, true, ops)

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	require.Len(t, bwe.WriteErrors, 1)
	assert.Equal(t, 2, bwe.WriteErrors[0].Index)
	assert.Equal(t, int64(1), result.DeletedCount)
	assert.Equal(t, int64(1), result.InsertedCount)
}

func TestBulkExecutorAggregatesCountsAcrossBatches(t *testing.T) {
	ops := []writeOp{
		{kind: opInsert, index: 0, document: Document{"_id": 1}, insertedID: 1},
		{kind: opInsert, index: 1, document: Document{"_id": 2}, insertedID: 2},
		{kind: opUpdate, index: 2, update: &protocol.UpdateSpec{Filter: Document{}, Update: Document{"$set": Document{"a": 1}}, Multi: true}},
		{kind: opDelete, index: 3, delete: &protocol.DeleteSpec{Filter: Document{}, Limit: 0}},
	}

	runner := newFakeRunner().
		reply(&protocol.Reply{OK: true, N: 2}).
		reply(&protocol.Reply{OK: true, N: 5, NModified: int64Ptr(4)}).
		reply(&protocol.Reply{OK: true, N: 7})

	result, err := runExecutor(t, runner, true, ops)

	require.NoError(t, err)
	assert.Equal(t, int64(2), result.InsertedCount)
	assert.Equal(t, int64(5), result.MatchedCount)
	require.NotNil(t, result.ModifiedCount)
	assert.Equal(t, int64(4), *result.ModifiedCount)
	assert.Equal(t, int64(7), result.DeletedCount)
	assert.Equal(t, int64(0), result.UpsertedCount)
	assert.Empty(t, result.UpsertedIDs)
}

func TestBulkExecutorUpsertKeyedByCallerIndex(t *testing.T) {
	// insert, then an upserting update: the upsert is local position 0 of
	// the update batch but caller position 1.
	ops := []writeOp{
		{kind: opInsert, index: 0, document: Document{"_id": "a"}, insertedID: "a"},
		{kind: opUpdate, index: 1, update: &protocol.UpdateSpec{Filter: Document{"k": 1}, Update: Document{"$set": Document{"v": 1}}, Upsert: true}},
	}

	runner := newFakeRunner().
		reply(&protocol.Reply{OK: true, N: 1}).
		reply(&protocol.Reply{
			OK:        true,
			N:         1,
			NModified: int64Ptr(0),
			Upserted:  []protocol.Upsert{{Index: 0, ID: "generated-id"}},
		})

	result, err := runExecutor(t, runner, true, ops)

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.UpsertedCount)
	assert.Equal(t, "generated-id", result.UpsertedIDs[1])
	// Upserts do not count as matched.
	assert.Equal(t, int64(0), result.MatchedCount)
}

func TestBulkExecutorModifiedCountUnknownWhenOmitted(t *testing.T) {
	ops := []writeOp{
		{kind: opUpdate, index: 0, update: &protocol.UpdateSpec{Filter: Document{}, Update: Document{"$set": Document{"a": 1}}}},
		{kind: opDelete, index: 1, delete: &protocol.DeleteSpec{Filter: Document{}, Limit: 1}},
		{kind: opUpdate, index: 2, update: &protocol.UpdateSpec{Filter: Document{}, Update: Document{"$set": Document{"b": 2}}}},
	}

	runner := newFakeRunner().
		reply(&protocol.Reply{OK: true, N: 1, NModified: int64Ptr(1)}).
		reply(&protocol.Reply{OK: true, N: 1}).
		// Second update batch omits nModified entirely.
		reply(&protocol.Reply{OK: true, N: 1})

	result, err := runExecutor(t, runner, true, ops)

	require.NoError(t, err)
	assert.Nil(t, result.ModifiedCount, "modified count must be unknown, not zero")
	assert.Equal(t, int64(2), result.MatchedCount)
}

func TestBulkExecutorModifiedCountZeroIsReported(t *testing.T) {
	ops := []writeOp{
		{kind: opUpdate, index: 0, update: &protocol.UpdateSpec{Filter: Document{"missing": true}, Update: Document{"$set": Document{"a": 1}}}},
	}

	runner := newFakeRunner().reply(&protocol.Reply{OK: true, N: 0, NModified: int64Ptr(0)})

	result, err := runExecutor(t, runner, true, ops)

	require.NoError(t, err)
	require.NotNil(t, result.ModifiedCount)
	assert.Equal(t, int64(0), *result.ModifiedCount)
}

func TestBulkExecutorCollectsWriteConcernErrors(t *testing.T) {
	runner := newFakeRunner().reply(&protocol.Reply{
		OK: true,
		N:  2,
		WriteConcernError: &protocol.WriteConcernError{
			Code:   protocol.CodeWriteConcernFailed,
			ErrMsg: "waiting for replication timed out",
		},
	})

	result, err := runExecutor(t, runner, true, insertOps(2))

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	require.Len(t, bwe.WriteConcernErrors, 1)
	assert.Equal(t, protocol.CodeWriteConcernFailed, bwe.WriteConcernErrors[0].Code)
	// The write itself was applied.
	assert.Equal(t, int64(2), result.InsertedCount)
}

func TestBulkExecutorTransportFailureKeepsPartialResult(t *testing.T) {
	ops := []writeOp{
		{kind: opInsert, index: 0, document: Document{"_id": 1}, insertedID: 1},
		{kind: opDelete, index: 1, delete: &protocol.DeleteSpec{Filter: Document{}, Limit: 1}},
	}

	netErr := errors.New("connection reset by peer")
	runner := newFakeRunner().
		reply(&protocol.Reply{OK: true, N: 1}).
		fail(netErr)

	result, err := runExecutor(t, runner, true, ops)

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	assert.ErrorIs(t, bwe, netErr)
	assert.Equal(t, int64(1), result.InsertedCount)
	assert.Equal(t, int64(1), bwe.PartialResult.InsertedCount)
}

func TestBulkExecutorTimeoutRecordedAsWriteConcernError(t *testing.T) {
	runner := newFakeRunner().fail(context.DeadlineExceeded)

	_, err := runExecutor(t, runner, true, insertOps(1))

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	require.Len(t, bwe.WriteConcernErrors, 1)
	assert.Equal(t, protocol.CodeExceededTimeLimit, bwe.WriteConcernErrors[0].Code)
	assert.ErrorIs(t, bwe, context.DeadlineExceeded)
}

func TestBulkExecutorCommandLevelFailure(t *testing.T) {
	// Deleting from a capped collection is rejected as a whole command.
	ops := []writeOp{
		{kind: opDelete, index: 0, delete: &protocol.DeleteSpec{Filter: Document{}, Limit: 1}},
	}

	runner := newFakeRunner().reply(&protocol.Reply{
		OK:     false,
		Code:   protocol.CodeIllegalOperation,
		ErrMsg: "cannot remove from a capped collection",
	})

	result, err := runExecutor(t, runner, true, ops)

	require.Error(t, err)
	var bwe *BulkWriteException
	require.ErrorAs(t, err, &bwe)
	require.Len(t, bwe.WriteErrors, 1)
	assert.Equal(t, protocol.CodeIllegalOperation, bwe.WriteErrors[0].Code)
	assert.Equal(t, 0, bwe.WriteErrors[0].Index)
	assert.Equal(t, int64(0), result.DeletedCount)
}

func TestBulkExecutorSplitsOversizedRuns(t *testing.T) {
	runner := newFakeRunner()
	runner.limits.MaxWriteBatchSize = 2
	runner.
		reply(&protocol.Reply{OK: true, N: 2}).
		reply(&protocol.Reply{OK: true, N: 2}).
		reply(&protocol.Reply{OK: true, N: 1})

	result, err := runExecutor(t, runner, true, insertOps(5))

	require.NoError(t, err)
	assert.Len(t, runner.commands, 3)
	assert.Len(t, runner.commands[0].Documents, 2)
	assert.Len(t, runner.commands[2].Documents, 1)
	assert.Equal(t, int64(5), result.InsertedCount)
}

func TestBulkExecutorAcknowledgedByDefault(t *testing.T) {
	runner := newFakeRunner().reply(&protocol.Reply{OK: true, N: 2})

	result, err := runExecutor(t, runner, true, insertOps(2))

	require.NoError(t, err)
	assert.True(t, result.Acknowledged)
}

func TestBulkExecutorUnacknowledgedReplyClearsFlag(t *testing.T) {
	runner := newFakeRunner().
		reply(&protocol.Reply{OK: true, N: 2}).
		unackedReply(&protocol.Reply{OK: true, N: 1})

	ops := append(insertOps(2), writeOp{kind: opDelete, index: 2, delete: &protocol.DeleteSpec{
		Filter: Document{"x": 1},
		Limit:  1,
	}})

	result, err := runExecutor(t, runner, true, ops)

	require.NoError(t, err)
	assert.False(t, result.Acknowledged)
	assert.Equal(t, int64(2), result.InsertedCount)
}

func TestBulkExecutorRejectsOversizedDocument(t *testing.T) {
	runner := newFakeRunner()
	runner.limits.MaxDocumentSizeBytes = 64

	ops := []writeOp{{
		kind:       opInsert,
		index:      0,
		document:   Document{"_id": 1, "blob": strings.Repeat("x", 128)},
		insertedID: 1,
	}}

	_, err := runExecutor(t, runner, true, ops)

	var argErr *InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Empty(t, runner.commands, "nothing is sent when validation fails")
}

func int64Ptr(v int64) *int64 { return &v }

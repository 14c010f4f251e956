package client

import (
	"github.com/samber/lo"

	"github.com/corvusdb/corvusdb-go/protocol"
)

// writeBatch is a run of same-kind operations that maps to a single server
// command. Operation order within a batch always matches the caller's
// original order.
type writeBatch struct {
	kind opKind
	ops  []writeOp
}

// indexes returns the caller-sequence index of every operation in the batch,
// aligned with the command's payload arrays. The server reports errors and
// upserts by position within a batch; this slice translates those positions
// back to the caller's indexes.
func (b *writeBatch) indexes() []int {
	out := make([]int, len(b.ops))
	for i, op := range b.ops {
		out[i] = op.index
	}
	return out
}

// command builds the wire command for the batch.
func (b *writeBatch) command(database, collection string, ordered bool, wc *protocol.WriteConcern) *protocol.Command {
	cmd := &protocol.Command{
		Kind:         b.kind.commandKind(),
		Database:     database,
		Collection:   collection,
		Ordered:      &ordered,
		WriteConcern: wc,
	}

	switch b.kind {
	case opInsert:
		cmd.Documents = make([]protocol.Document, len(b.ops))
		for i, op := range b.ops {
			cmd.Documents[i] = op.document
		}
	case opUpdate:
		cmd.Updates = make([]protocol.UpdateSpec, len(b.ops))
		for i, op := range b.ops {
			cmd.Updates[i] = *op.update
		}
	case opDelete:
		cmd.Deletes = make([]protocol.DeleteSpec, len(b.ops))
		for i, op := range b.ops {
			cmd.Deletes[i] = *op.delete
		}
	}

	return cmd
}

// buildBatches splits a normalized operation sequence into batches.
//
// Ordered mode cuts the sequence at every kind change, so batches are maximal
// consecutive same-kind runs and replaying them in order reproduces the
// caller's sequence exactly. Unordered mode groups all operations of a kind
// together (inserts, then updates, then deletes) to minimize round trips;
// within a group the caller's relative order is kept.
//
// Runs longer than maxBatchSize are split into consecutive chunks of at most
// that many operations.
func buildBatches(ops []writeOp, ordered bool, maxBatchSize int) []writeBatch {
	if len(ops) == 0 {
		return nil
	}
	if maxBatchSize <= 0 {
		maxBatchSize = int(protocol.DefaultLimits().MaxWriteBatchSize)
	}

	var runs []writeBatch

	if ordered {
		start := 0
		for i := 1; i <= len(ops); i++ {
			if i == len(ops) || ops[i].kind != ops[start].kind {
				runs = append(runs, writeBatch{kind: ops[start].kind, ops: ops[start:i]})
				start = i
			}
		}
	} else {
		byKind := map[opKind][]writeOp{}
		for _, op := range ops {
			byKind[op.kind] = append(byKind[op.kind], op)
		}
		for _, kind := range []opKind{opInsert, opUpdate, opDelete} {
			if group := byKind[kind]; len(group) > 0 {
				runs = append(runs, writeBatch{kind: kind, ops: group})
			}
		}
	}

	batches := make([]writeBatch, 0, len(runs))
	for _, run := range runs {
		for _, chunk := range lo.Chunk(run.ops, maxBatchSize) {
			batches = append(batches, writeBatch{kind: run.kind, ops: chunk})
		}
	}

	return batches
}

package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusdb/corvusdb-go/protocol"
)

func TestRepliesConsumedInOrder(t *testing.T) {
	mt := NewMockTransport().
		EnqueueReply([]byte("first")).
		EnqueueReply([]byte("second"))

	ctx := context.Background()

	data, err := mt.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	data, err = mt.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
	assert.Equal(t, 0, mt.PendingReplies())
}

func TestReceiveWithoutScriptTimesOut(t *testing.T) {
	mt := NewMockTransport()

	_, err := mt.Receive(context.Background())

	require.Error(t, err)
	var terr *protocol.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, protocol.ErrorCodeTimeout, terr.Code)
}

func TestSendRecordsHistory(t *testing.T) {
	mt := NewMockTransport()
	ctx := context.Background()

	require.NoError(t, mt.Send(ctx, []byte("a")))
	require.NoError(t, mt.Send(ctx, []byte("b")))

	history := mt.GetSendHistory()
	require.Len(t, history, 2)
	assert.Equal(t, []byte("a"), history[0])
	assert.Equal(t, 2, mt.GetSendCallCount())
}

func TestSendErrorAfterN(t *testing.T) {
	wire := errors.New("broken pipe")
	mt := NewMockTransport().WithSendErrorAfter(2, wire)
	ctx := context.Background()

	require.NoError(t, mt.Send(ctx, []byte("one")))
	require.NoError(t, mt.Send(ctx, []byte("two")))
	assert.ErrorIs(t, mt.Send(ctx, []byte("three")), wire)

	// Failed sends do not land in history.
	assert.Len(t, mt.GetSendHistory(), 2)
}

func TestClosedTransportRejectsIO(t *testing.T) {
	mt := NewMockTransport().EnqueueReply([]byte("unused"))
	require.NoError(t, mt.Close())

	assert.Error(t, mt.Send(context.Background(), []byte("x")))
	_, err := mt.Receive(context.Background())
	assert.Error(t, err)
	assert.False(t, mt.IsHealthy())
	assert.True(t, mt.IsClosed())
}

func TestResetRestoresCleanState(t *testing.T) {
	mt := NewMockTransport().
		WithSendError(errors.New("boom")).
		EnqueueReply([]byte("stale"))
	mt.Close()

	mt.Reset()

	require.NoError(t, mt.Send(context.Background(), []byte("fresh")))
	assert.Equal(t, 0, mt.PendingReplies())
	assert.Equal(t, 1, mt.GetSendCallCount())
	assert.True(t, mt.IsHealthy())
}

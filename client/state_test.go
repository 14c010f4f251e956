package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManagerStartsDisconnected(t *testing.T) {
	sm := NewStateManager()
	assert.Equal(t, DISCONNECTED, sm.GetState())
}

func TestStateManagerLegalLifecycle(t *testing.T) {
	sm := NewStateManager()

	for _, next := range []ConnectionState{CONNECTING, CONNECTED, DISCONNECTING, DISCONNECTED} {
		require.NoError(t, sm.TransitionTo(next, nil, nil))
		assert.Equal(t, next, sm.GetState())
	}
}

func TestStateManagerFailedConnect(t *testing.T) {
	sm := NewStateManager()
	require.NoError(t, sm.TransitionTo(CONNECTING, nil, nil))

	connErr := errors.New("dial refused")
	require.NoError(t, sm.TransitionTo(DISCONNECTED, connErr, map[string]interface{}{"reason": "error"}))
	assert.Equal(t, DISCONNECTED, sm.GetState())
}

func TestStateManagerRejectsIllegalTransitions(t *testing.T) {
	cases := []struct {
		name string
		path []ConnectionState
		bad  ConnectionState
	}{
		{"disconnected to connected", nil, CONNECTED},
		{"disconnected to disconnecting", nil, DISCONNECTING},
		{"connecting to disconnecting", []ConnectionState{CONNECTING}, DISCONNECTING},
		{"connected to connecting", []ConnectionState{CONNECTING, CONNECTED}, CONNECTING},
		{"connected straight to disconnected", []ConnectionState{CONNECTING, CONNECTED}, DISCONNECTED},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sm := NewStateManager()
			for _, s := range tc.path {
				require.NoError(t, sm.TransitionTo(s, nil, nil))
			}
			err := sm.TransitionTo(tc.bad, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "illegal state transition")
		})
	}
}

func TestStateManagerNotifiesHandlers(t *testing.T) {
	sm := NewStateManager()

	var seen []StateTransition
	sm.OnStateChange(func(tr StateTransition) {
		seen = append(seen, tr)
	})

	require.NoError(t, sm.TransitionTo(CONNECTING, nil, map[string]interface{}{"attempt": 1}))
	require.NoError(t, sm.TransitionTo(CONNECTED, nil, nil))

	require.Len(t, seen, 2)
	assert.Equal(t, DISCONNECTED, seen[0].From)
	assert.Equal(t, CONNECTING, seen[0].To)
	assert.Equal(t, 1, seen[0].Metadata["attempt"])
	assert.Equal(t, CONNECTING, seen[1].From)
	assert.Equal(t, CONNECTED, seen[1].To)
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", DISCONNECTED.String())
	assert.Equal(t, "CONNECTING", CONNECTING.String())
	assert.Equal(t, "CONNECTED", CONNECTED.String())
	assert.Equal(t, "DISCONNECTING", DISCONNECTING.String())
	assert.Equal(t, "UNKNOWN", ConnectionState(99).String())
}

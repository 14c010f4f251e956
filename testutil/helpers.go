package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/corvusdb/corvusdb-go/client"
	"github.com/corvusdb/corvusdb-go/transport"
	"github.com/corvusdb/corvusdb-go/transport/mock"
)

// MockConnString is the connection string used with mock transports. The
// address is never dialed.
const MockConnString = "corvusdb://localhost:1776/testdb"

// NewTestClient creates a client connected to a real server. It reads the
// connection string from the CORVUSDB_TEST_CONN environment variable and
// skips the test when it is not set.
//
// Example:
//
//	export CORVUSDB_TEST_CONN="corvusdb://localhost:1776/testdb"
//	c, cleanup := testutil.NewTestClient(t)
//	defer cleanup()
func NewTestClient(t *testing.T) (*client.Client, func()) {
	t.Helper()

	connStr := os.Getenv("CORVUSDB_TEST_CONN")
	if connStr == "" {
		t.Skip("CORVUSDB_TEST_CONN not set, skipping integration test")
		return nil, func() {}
	}

	opts := client.DefaultOptions()
	opts.DebugMode = testing.Verbose()

	c := client.NewClient(&opts)
	ctx := context.Background()

	if err := c.Connect(ctx, connStr); err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	cleanup := func() {
		if err := c.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect: %v", err)
		}
	}

	return c, cleanup
}

// NewMockClient creates a client whose transport is the given mock. The
// handshake reply is enqueued automatically, so the mock's scripted replies
// start with the first command the test sends.
func NewMockClient(t *testing.T, mt *mock.MockTransport) *client.Client {
	t.Helper()

	mt.EnqueueReply(HelloReply(nil))

	opts := client.DefaultOptions()
	opts.MaxRetries = 1
	opts.Logger = client.NewNoopLogger()
	opts.TransportFactory = func(ctx context.Context) (transport.Transport, error) {
		return mt, nil
	}

	c := client.NewClient(&opts)
	if err := c.Connect(context.Background(), MockConnString); err != nil {
		t.Fatalf("failed to connect mock client: %v", err)
	}

	return c
}

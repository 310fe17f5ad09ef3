package database_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/training-progress-api/internal/database"
)

func TestConnectRedis(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := database.ConnectRedis("redis://" + server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = database.ConnectRedis("")
	require.Error(t, err)

	_, err = database.ConnectRedis("not a url")
	require.Error(t, err)
}

func TestNATSStatusWithoutConnection(t *testing.T) {
	require.EqualError(t, database.NATSStatus(nil), "nats not configured")
}

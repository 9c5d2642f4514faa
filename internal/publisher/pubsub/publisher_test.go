package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "pm-scraper-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client, srv
}

func TestPublishSendsJSON(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "scrapes")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	id, err := pub.Publish(ctx, "scrapes", map[string]any{"count": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "application/json", msgs[0].Attributes["content-type"])

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, 3, decoded["count"])
}

func TestPublishMissingTopic(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), "absent", map[string]int{"count": 1})
	require.Error(t, err)
}

func TestPublishValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "scrapes", nil)
	require.Error(t, err)

	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()
	_, err = pub.Publish(context.Background(), "", nil)
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "scrapes", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

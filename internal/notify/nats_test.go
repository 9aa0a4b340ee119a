package notify

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/specblocks/internal/config"
)

// runJetStream starts an in-process NATS server with JetStream on a random port.
func runJetStream(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestNATSPublisherPublishesToStream(t *testing.T) {
	ns := runJetStream(t)
	ctx := context.Background()
	cfg := config.NotifyConfig{
		NATSURL: ns.ClientURL(),
		Subject: "specblocks.builds",
		Stream:  "SPECBLOCKS",
	}

	pub, err := NewNATSPublisher(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	ev := BuildCompleted{
		BuildID:     "b-1",
		Source:      "openapi.yaml",
		Languages:   []string{"curl"},
		Fragments:   3,
		CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, ev))
	// Same build ID is dropped by the stream's duplicate window.
	require.NoError(t, pub.Publish(ctx, ev))
	require.NoError(t, pub.Publish(ctx, BuildCompleted{BuildID: "b-2"}))

	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer conn.Close()
	js, err := jetstream.New(conn)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, cfg.Stream)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)
	assert.Equal(t, []string{cfg.Subject}, info.Config.Subjects)

	msg, err := stream.GetMsg(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, cfg.Subject, msg.Subject)
	assert.JSONEq(t, `{
		"build_id": "b-1",
		"source": "openapi.yaml",
		"spec_sha": "",
		"output_dir": "",
		"languages": ["curl"],
		"fragments": 3,
		"entries": 0,
		"stale": false,
		"completed_at": "2026-01-02T03:04:05Z"
	}`, string(msg.Data))
}

func TestNewNATSPublisherUpdatesExistingStream(t *testing.T) {
	ns := runJetStream(t)
	ctx := context.Background()
	cfg := config.NotifyConfig{NATSURL: ns.ClientURL(), Subject: "specblocks.builds", Stream: "SPECBLOCKS"}

	first, err := NewNATSPublisher(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A second publisher against the same stream reuses it.
	second, err := NewNATSPublisher(ctx, cfg)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Publish(ctx, BuildCompleted{BuildID: "b-3"}))
}

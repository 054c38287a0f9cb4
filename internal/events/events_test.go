package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), SubjectCartConfirmed, CartEvent{CartID: "c1"}))
	require.NoError(t, r.Publish(context.Background(), SubjectCartRejected, CartEvent{CartID: "c1"}))

	assert.Equal(t, []string{SubjectCartConfirmed, SubjectCartRejected}, r.Subjects())
	assert.Equal(t, "c1", r.Messages()[0].Payload.(CartEvent).CartID)
}

func TestLogPublisherWritesSubject(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), SubjectSessionInvalidated, SessionEvent{UserID: 1, Reason: "logout"}))

	entries := logs.FilterField(zap.String("subject", SubjectSessionInvalidated)).All()
	assert.Len(t, entries, 1)
}

func TestNATSPublisherDeliversJSON(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	p, err := ConnectNATS(url, nil)
	require.NoError(t, err)
	defer p.Close()

	sub, err := p.conn.SubscribeSync(SubjectCartConfirmed)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), SubjectCartConfirmed, CartEvent{CartID: "c1", Action: "add"}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cartId":"c1","action":"add","totalQuantity":0}`, string(msg.Data))
}

package cdp

import (
	"context"
	"errors"
	"testing"
	"time"

	"tab-inspector/internal/config"
	"tab-inspector/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(d Dialer) *Connector {
	return NewConnector(ConnectorParams{
		Config: &config.Config{SessionConfig: &config.SessionConfig{CommandTimeout: time.Second}},
		Logger: zap.NewNop(),
		Dialer: d,
	})
}

func TestConnectorAttachLeavesChannelOpen(t *testing.T) {
	dialer := &fakeDialer{handler: evalValue(2)}
	tab := entity.TabReference{ID: "A", URL: "https://example.com/", Endpoint: "ws://tab/A"}

	session, closer, err := newTestConnector(dialer).Attach(context.Background(), tab)
	require.NoError(t, err)
	require.Len(t, dialer.channels, 1)
	assert.Equal(t, "https://example.com/", session.URL())

	raw, err := session.Evaluate(context.Background(), "1+1", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", string(raw))

	require.NoError(t, session.Close())
	assert.False(t, dialer.channels[0].isClosed())

	require.NoError(t, closer.Close())
	assert.True(t, dialer.channels[0].isClosed())
}

func TestConnectorAttachDialFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("refused")}

	_, _, err := newTestConnector(dialer).Attach(context.Background(), entity.TabReference{ID: "A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestConnectorOpenOwnsChannel(t *testing.T) {
	dialer := &fakeDialer{handler: echoHandler}

	session := newTestConnector(dialer).Open(entity.TabReference{ID: "A", Endpoint: "ws://tab/A"})
	assert.Empty(t, dialer.channels)

	_, err := session.OuterHTML(context.Background())
	require.Error(t, err)
	require.Len(t, dialer.channels, 1)

	require.NoError(t, session.Close())
	assert.True(t, dialer.channels[0].isClosed())
}

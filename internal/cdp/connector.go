package cdp

import (
	"context"
	"fmt"
	"io"
	"time"

	"tab-inspector/internal/config"
	"tab-inspector/internal/entity"
	"tab-inspector/internal/ports"
	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connector hands out sessions configured from the application config.
type Connector struct {
	dialer  Dialer
	timeout time.Duration
	logger  *zap.Logger
}

type ConnectorParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Dialer Dialer
}

func NewConnector(params ConnectorParams) *Connector {
	return &Connector{
		dialer:  params.Dialer,
		timeout: params.Config.SessionConfig.CommandTimeout,
		logger:  params.Logger,
	}
}

// Open returns an owned session for the tab. Nothing is dialed until the
// first command.
func (c *Connector) Open(tab entity.TabReference) ports.PageSession {
	return Open(tab.Endpoint, c.dialer, Options{
		URL:     tab.URL,
		Timeout: c.timeout,
		Logger:  c.logger.With(zap.String(logg.TabID, tab.ID)),
	})
}

// Attach dials the tab now and returns a session borrowing the channel. The
// returned closer is the channel itself.
func (c *Connector) Attach(ctx context.Context, tab entity.TabReference) (ports.PageSession, io.Closer, error) {
	const op = "Connector.Attach"

	ch, err := c.dialer.Dial(ctx, tab.Endpoint)
	if err != nil {
		return nil, nil, apperr.Wrap(op, apperr.CodeConnection, fmt.Errorf("%w: %w", ErrConnection, err), map[string]any{
			apperr.MetaReason:   "dial_failed",
			apperr.MetaTabID:    tab.ID,
			apperr.MetaEndpoint: tab.Endpoint,
		})
	}

	return Borrow(ch, Options{
		Endpoint: tab.Endpoint,
		URL:      tab.URL,
		Timeout:  c.timeout,
		Logger:   c.logger.With(zap.String(logg.TabID, tab.ID)),
	}), ch, nil
}

package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"
	"tab-inspector/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	sessionName           = "ProtocolSession"
	sessionTracer         = "cdp.session"
	DefaultCommandTimeout = 30 * time.Second
)

type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

type response struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data,omitempty"`
	} `json:"error,omitempty"`
}

type Options struct {
	Endpoint string
	URL      string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// channelSource decides how a session obtains and disposes of its channel.
// The two implementations are the owned and borrowed variants.
type channelSource interface {
	acquire(ctx context.Context) (ch Channel, fresh bool, err error)
	invalidate(ch Channel)
	release() error
}

type ownedChannel struct {
	endpoint string
	dialer   Dialer
	ch       Channel
}

func (o *ownedChannel) acquire(ctx context.Context) (Channel, bool, error) {
	if o.ch != nil {
		return o.ch, false, nil
	}

	ch, err := o.dialer.Dial(ctx, o.endpoint)
	if err != nil {
		return nil, false, err
	}

	o.ch = ch

	return ch, true, nil
}

func (o *ownedChannel) invalidate(ch Channel) {
	if o.ch != nil && o.ch == ch {
		_ = o.ch.Close()
		o.ch = nil
	}
}

func (o *ownedChannel) release() error {
	if o.ch == nil {
		return nil
	}

	err := o.ch.Close()
	o.ch = nil

	return err
}

type borrowedChannel struct {
	ch Channel
}

func (b *borrowedChannel) acquire(context.Context) (Channel, bool, error) {
	return b.ch, false, nil
}

func (b *borrowedChannel) invalidate(Channel) {}

func (b *borrowedChannel) release() error { return nil }

// Session is a handle on the debug channel of one target. Commands issued on
// one session are strictly sequential.
type Session struct {
	source   channelSource
	endpoint string
	url      string
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	nextID int64
}

// Open returns a session that dials its own channel on first use and closes
// it on Close.
func Open(endpoint string, dialer Dialer, opts Options) *Session {
	opts.Endpoint = endpoint

	return newSession(&ownedChannel{endpoint: endpoint, dialer: dialer}, true, opts)
}

// Borrow returns a session over a channel owned by the caller. Close never
// closes ch.
func Borrow(ch Channel, opts Options) *Session {
	return newSession(&borrowedChannel{ch: ch}, false, opts)
}

func newSession(source channelSource, owned bool, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCommandTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		source:   source,
		endpoint: opts.Endpoint,
		url:      opts.URL,
		timeout:  opts.Timeout,
		logger: logger.With(
			zap.String(logg.Layer, sessionName),
			zap.String(logg.Endpoint, opts.Endpoint),
			zap.Bool("owned", owned)),
		tracer: otel.Tracer(sessionTracer),
	}
}

// Scoped runs fn with s and closes s afterwards. For a borrowed session the
// close is a no-op and the caller's channel stays open.
func Scoped(s *Session, fn func(*Session) error) (err error) {
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(s)
}

func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.url
}

func (s *Session) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.url = url
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.source.release(); err != nil {
		return apperr.Wrap("Close", apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason:   "close_failed",
			apperr.MetaEndpoint: s.endpoint,
		})
	}

	return nil
}

// Invoke sends one command and waits for its matching response.
func (s *Session) Invoke(ctx context.Context, method string, params any) (result json.RawMessage, err error) {
	const op = "Invoke"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Method, method))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("method", method))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channelLocked(ctx)
	if err != nil {
		return nil, err
	}

	return s.roundTrip(ctx, ch, method, params)
}

func (s *Session) channelLocked(ctx context.Context) (Channel, error) {
	const op = "connect"

	ch, fresh, err := s.source.acquire(ctx)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeConnection, fmt.Errorf("%w: %w", ErrConnection, err), map[string]any{
			apperr.MetaReason:   "dial_failed",
			apperr.MetaStage:    apperr.StageSession,
			apperr.MetaEndpoint: s.endpoint,
		})
	}

	if !fresh {
		return ch, nil
	}

	s.logger.Debug("Connected to debug endpoint")

	if _, err := s.roundTrip(ctx, ch, "Runtime.enable", nil); err != nil {
		s.source.invalidate(ch)

		return nil, err
	}

	return ch, nil
}

func (s *Session) roundTrip(ctx context.Context, ch Channel, method string, params any) (json.RawMessage, error) {
	const op = "roundTrip"

	if params == nil {
		params = struct{}{}
	}

	s.nextID++
	id := s.nextID

	logger := s.logger.With(zap.String(logg.Method, method), zap.Int64(logg.CommandID, id))

	payload, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
			apperr.MetaReason: "marshal_params_failed",
			apperr.MetaMethod: method,
		})
	}

	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.Debug("Sending command")

	if err := ch.Send(cmdCtx, payload); err != nil {
		return nil, s.transportError(ctx, ch, method, err)
	}

	for {
		data, err := ch.Receive(cmdCtx)
		if err != nil {
			return nil, s.transportError(ctx, ch, method, err)
		}

		var msg response
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Discarding undecodable message", zap.Error(err))

			continue
		}

		if msg.ID == nil {
			logger.Debug("Ignoring event", zap.String("event", msg.Method))

			continue
		}

		if *msg.ID != id {
			logger.Debug("Ignoring response for another command", zap.Int64("response_id", *msg.ID))

			continue
		}

		if msg.Error != nil {
			return nil, apperr.Wrap(op, apperr.CodeProtocol, &ProtocolError{
				Method:  method,
				Code:    msg.Error.Code,
				Message: msg.Error.Message,
				Data:    msg.Error.Data,
			}, map[string]any{
				apperr.MetaReason: "command_error",
				apperr.MetaMethod: method,
			})
		}

		return msg.Result, nil
	}
}

func (s *Session) transportError(parent context.Context, ch Channel, method string, err error) error {
	const op = "roundTrip"

	meta := map[string]any{
		apperr.MetaMethod:   method,
		apperr.MetaEndpoint: s.endpoint,
	}

	switch {
	case parent.Err() != nil:
		meta[apperr.MetaReason] = "cancelled"

		return apperr.Wrap(op, apperr.CodeCancelled, parent.Err(), meta)
	case errors.Is(err, context.DeadlineExceeded):
		meta[apperr.MetaReason] = "no_response"

		return apperr.Wrap(op, apperr.CodeTimeout, fmt.Errorf("%w after %s", ErrTimeout, s.timeout), meta)
	default:
		s.logger.Warn("Channel closed during command", zap.String(logg.Method, method), zap.Error(err))
		s.source.invalidate(ch)
		meta[apperr.MetaReason] = "channel_closed"

		return apperr.Wrap(op, apperr.CodeConnection, fmt.Errorf("%w: %w", ErrConnection, err), meta)
	}
}

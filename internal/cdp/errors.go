package cdp

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection marks a channel that could not be opened or was closed
	// while a command was in flight.
	ErrConnection = errors.New("cdp: connection error")

	// ErrTimeout marks a command whose response did not arrive in time. The
	// channel itself is still usable.
	ErrTimeout = errors.New("cdp: command timed out")

	// ErrChannelClosed is returned by Channel implementations once closed.
	ErrChannelClosed = errors.New("cdp: channel closed")
)

// ProtocolError is an {id, error} response to a command.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
	Data    string
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp %s: %s (%d): %s", e.Method, e.Message, e.Code, e.Data)
	}

	return fmt.Sprintf("cdp %s: %s (%d)", e.Method, e.Message, e.Code)
}

// ScriptException is an exception thrown by page-side script during
// Runtime.evaluate.
type ScriptException struct {
	Text        string
	Description string
	Line        int
	Column      int
}

func (e *ScriptException) Error() string {
	msg := e.Text
	if e.Description != "" {
		msg = e.Description
	}

	return "javascript exception: " + msg
}

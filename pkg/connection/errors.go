package connection

import "errors"

var (
	ErrNilFactory         = errors.New("connection.nil_factory")
	ErrHandleConstruction = errors.New("connection.handle_construction")
	ErrReconnectUnhealthy = errors.New("connection.reconnect_unhealthy")
	ErrClosed             = errors.New("connection.closed")
)

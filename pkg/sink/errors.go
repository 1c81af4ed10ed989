package sink

import "errors"

var (
	ErrNilSurface     = errors.New("sink: nil surface")
	ErrNilDispatcher  = errors.New("sink: nil dispatcher")
	ErrSinkClosed     = errors.New("sink: closed")
	ErrRegisterSource = errors.New("sink: register source")
	ErrDeliver        = errors.New("sink: deliver batch")
	ErrQueryVisible   = errors.New("sink: query visible entries")
)

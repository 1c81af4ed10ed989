package feed

import "errors"

var (
	ErrEncodeFrame   = errors.New("feed: encode frame")
	ErrDecodeFrame   = errors.New("feed: decode frame")
	ErrWriteFrame    = errors.New("feed: write frame")
	ErrReadFrame     = errors.New("feed: read frame")
	ErrFrameTooLarge = errors.New("feed: frame too large")
	ErrDial          = errors.New("feed: dial viewer socket")
	ErrListen        = errors.New("feed: listen on viewer socket")
	ErrClientClosed  = errors.New("feed: client closed")
)

package surface

import "errors"

var (
	ErrDuplicateSource    = errors.New("surface: source ID already registered")
	ErrSourceUnregistered = errors.New("surface: source already unregistered")
	ErrOpenStore          = errors.New("surface: open store")
	ErrStoreQuery         = errors.New("surface: store query")
	ErrStoreWrite         = errors.New("surface: store write")
)

package main

import "errors"

var ErrAborted = errors.New("aborted by user")

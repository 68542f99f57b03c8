package statemachine

import "errors"

var (
	ErrMachineClosed = errors.New("state machine closed")
	ErrNilEvent      = errors.New("nil event")
)

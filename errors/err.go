package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig = fmt.Errorf("nativeagent: invalid config")
	ErrNotFound      = fmt.Errorf("nativeagent: not found")
	ErrInvalidParams = fmt.Errorf("nativeagent: invalid params")
	ErrInternal      = fmt.Errorf("nativeagent: internal error")
	ErrBusy          = fmt.Errorf("nativeagent: a message is already being processed")
	ErrUnavailable   = fmt.Errorf("nativeagent: unavailable")
	ErrCorrupt       = fmt.Errorf("nativeagent: corrupt value")
)

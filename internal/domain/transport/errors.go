package transport

import "errors"

// ErrFlowClosed is returned when publishing to a closed Flow.
var ErrFlowClosed = errors.New("flow closed")

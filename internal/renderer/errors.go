package renderer

import "errors"

// ErrClosed is returned by operations on a renderer after Close.
var ErrClosed = errors.New("renderer: closed")

// ErrFrameSize is returned when a source buffer is smaller than the
// configured display after orientation.
var ErrFrameSize = errors.New("renderer: frame smaller than display")

// IsClosed reports whether err indicates the renderer has been torn down.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }

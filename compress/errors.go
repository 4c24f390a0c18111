package compress

import "errors"

// ErrUnsupportedCodec is returned when a Codec value has no registered
// implementation in this build.
var ErrUnsupportedCodec = errors.New("compress: unsupported codec")

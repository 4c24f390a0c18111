package dispatch

import (
	"io"
	"log"
)

// Logger is the destination for the package's diagnostic output: connect
// attempts, ACK classification decisions, shutdown phase transitions. It
// defaults to discarding everything; set it once at process startup the
// same way you would any other *log.Logger-based library.
var Logger StdLogger = log.New(io.Discard, "[dispatch] ", log.LstdFlags)

// StdLogger is the subset of *log.Logger this package calls. Embedding an
// interface instead of a concrete type lets callers plug in a structured
// logger by wrapping it with the three methods below.
type StdLogger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

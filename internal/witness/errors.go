package witness

import "errors"

// ErrSchema is returned when a snapshot or journal names a type tag that
// is not registered in this process.
var ErrSchema = errors.New("witness: unregistered type tag")

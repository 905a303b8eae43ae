package file

import "errors"

// errWouldBlock signals that another process holds the sweep lock.
var errWouldBlock = errors.New("file lock would block")

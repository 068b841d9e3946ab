package coordinator

import "errors"

var (
	// ErrUninitialized is returned for any request other than initialize
	// before the daemon has been initialized.
	ErrUninitialized = errors.New("coordinator: daemon is not initialized")
	// ErrAlreadyInitialized is returned when initialize is called again
	// with parameters that differ from the first call.
	ErrAlreadyInitialized = errors.New("coordinator: daemon is already initialized with different parameters")
	// ErrShuttingDown is returned for any request received during or after
	// the shutdown drain window.
	ErrShuttingDown = errors.New("coordinator: daemon is shutting down")
	// ErrFileRead is returned when indexFile cannot read the source file.
	ErrFileRead = errors.New("coordinator: could not read source file")
)

package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport and backend errors
	ErrTransport          = fmt.Errorf("transport failure")
	ErrDecode             = fmt.Errorf("payload decode failed")
	ErrBackendUnavailable = fmt.Errorf("backend is not running, waiting for it to come up")
	ErrAPIRequest         = fmt.Errorf("API request failed")

	// Command errors
	ErrJobNotFound   = fmt.Errorf("job not found")
	ErrCommandFailed = fmt.Errorf("command failed")
	ErrEngineStopped = fmt.Errorf("engine is not running")
	ErrSelectionBusy = fmt.Errorf("another playlist selection is already active")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

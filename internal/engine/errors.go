package engine

import "errors"

var (
	ErrProviderUnavailable = errors.New("analysis engine unavailable")
	ErrEngineTimeout       = errors.New("analysis engine timeout")
	ErrInvalidResponse     = errors.New("analysis engine returned invalid response")
)

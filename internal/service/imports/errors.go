package imports

import "errors"

// Sentinel errors for the imports service layer.
var (
	ErrTaskNotFound    = errors.New("import task not found")
	ErrNoTaskAvailable = errors.New("no queued import task available")
	ErrMissingAudience = errors.New("audience_id is required")
	ErrMissingFile     = errors.New("import file is required")
)

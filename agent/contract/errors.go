package contract

import "errors"

var (
	ErrModelInvoke      = errors.New("model invoke failed")
	ErrEmptyResponse    = errors.New("model returned an empty response")
	ErrRetrieval        = errors.New("catalog retrieval failed")
	ErrToolArguments    = errors.New("malformed tool arguments")
	ErrPromptMissing    = errors.New("required prompt is missing")
	ErrValidation       = errors.New("validation failed")
	ErrImageUnsupported = errors.New("image input is not supported")
)

package service

import "errors"

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrEmptyPrompts    = errors.New("at least one prompt is required")
	ErrInvalidCount    = errors.New("count must be at least 1")
	ErrDuplicatePrompt = errors.New("prompt ids must be unique within a job")
	ErrMissingArtwork  = errors.New("an artwork must be applied before queueing")
	ErrInvalidState    = errors.New("job is not in a state that allows this transition")
)

package entity

import "errors"

// Domain errors surfaced by the classifier core.
var (
	ErrUnknownApplication         = errors.New("unknown application")
	ErrUnknownIntent              = errors.New("unknown intent")
	ErrUnknownEntityType          = errors.New("unknown entity type")
	ErrInconsistentClassification = errors.New("classification differs from validated sentence")
	ErrInvalidQuery               = errors.New("invalid parse query")
	ErrDuplicateDefinition        = errors.New("definition already exists")
)

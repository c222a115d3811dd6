package domain

import "errors"

var (
	// ErrSchema marks raw input that violates the table contract.
	ErrSchema = errors.New("schema violation")
	// ErrMissingPopulation marks a location that cannot be normalized per capita.
	ErrMissingPopulation = errors.New("missing population")
	// ErrSanity marks transformed output that fails final plausibility checks.
	ErrSanity = errors.New("sanity check failed")
	// ErrInvalidAggregate marks an unusable aggregate or geography definition.
	ErrInvalidAggregate = errors.New("invalid aggregate")
)

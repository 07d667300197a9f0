package model

import (
	"errors"
	"fmt"
)

// MappingError reports a raw record that cannot become a Business.
type MappingError struct {
	Source Source
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s record: %s: %s", e.Source, e.Field, e.Reason)
}

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ValidationError reports an input outside its contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsMapping reports whether err wraps a MappingError.
func IsMapping(err error) bool {
	var me *MappingError
	return errors.As(err, &me)
}

package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrLeadNotOffered      = errors.New("lead is not on offer")
	ErrLeadExpired         = errors.New("lead offer expired")
	ErrWrongPlumber        = errors.New("lead belongs to another plumber")
)

// ValidationError reports a malformed Job or Plumber record
type ValidationError struct {
	Entity  string
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field '%s' with value '%v' %s", e.Entity, e.Field, e.Value, e.Message)
}

type validator struct {
	entity string
	err    *ValidationError
}

// check records the first failing rule only
func (v *validator) check(ok bool, field string, value interface{}, message string) {
	if v.err != nil || ok {
		return
	}
	v.err = &ValidationError{Entity: v.entity, Field: field, Value: value, Message: message}
}

func (v *validator) result() error {
	if v.err == nil {
		return nil
	}
	return v.err
}

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfiguration is returned when a pairing cannot be formed with the given inputs,
	// or when the loaded configuration fails validation.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrMessageNotFound is returned by a Mailbox when no message from a sender exists in a folder.
	ErrMessageNotFound = errors.New("message not found")
	// ErrRoundNotFound is returned by a review repository for an unknown round.
	ErrRoundNotFound = errors.New("round not found")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	msg := err.Err.Error()
	for _, f := range err.Fields {
		msg += fmt.Sprintf("; %s: %s", f.Field, f.Error)
	}
	return msg
}

func (err ValidationError) Unwrap() error { return err.Err }

// PersistenceError reports a failure to read, parse or write a stored round.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func NewPersistenceError(op, path string, err error) error {
	return &PersistenceError{Op: op, Path: path, Err: err}
}

func (err *PersistenceError) Error() string {
	if err.Path != "" {
		return fmt.Sprintf("%s %s: %v", err.Op, err.Path, err.Err)
	}
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err *PersistenceError) Unwrap() error { return err.Err }

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

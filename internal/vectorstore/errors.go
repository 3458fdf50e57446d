package vectorstore

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySession      = errors.New("vectorstore: session id must be non-empty")
	ErrEmptyText         = errors.New("vectorstore: content text must be non-empty")
	ErrDimensionMismatch = errors.New("vectorstore: embedding has wrong dimension")
)

// StoreError records the store operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vectorstore %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

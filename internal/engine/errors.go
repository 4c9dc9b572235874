package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrPartNotFound      = errors.New("part not found")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStorageMismatch   = errors.New("storage mismatch")
)

// CallError reports a failed session call
type CallError struct {
	Op        string
	Node      NodeID
	Attribute string
	Err       error
}

func (e *CallError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("%s node %d attribute %q: %v", e.Op, e.Node, e.Attribute, e.Err)
	}
	return fmt.Sprintf("%s node %d: %v", e.Op, e.Node, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Fail builds a CallError
func Fail(op string, node NodeID, attr string, err error) error {
	return &CallError{Op: op, Node: node, Attribute: attr, Err: err}
}

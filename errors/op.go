package errors

import "fmt"

// OpError records which store operation failed and for which namespace.
type OpError struct {
	Op        string
	Namespace string
	Err       error
}

func (e *OpError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Namespace, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewOpError(op, namespace string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Namespace: namespace, Err: err}
}

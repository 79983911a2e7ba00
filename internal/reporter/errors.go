package reporter

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus is wrapped when an HTTP endpoint answers with a
// non-2xx status.
var ErrUnexpectedStatus = errors.New("reporter: unexpected response status")

// TransportError is a failed publish to one outlet.
type TransportError struct {
	Reporter string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reporter %s: %v", e.Reporter, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// wrap returns err as a TransportError for name, leaving existing ones alone.
func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Reporter: name, Err: err}
}

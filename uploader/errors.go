package uploader

import "fmt"

// UnknownProtocolError is returned for a protocol that matches none of the
// known upload methods. It is a configuration problem, not a build failure:
// callers warn and register an upload target that does nothing.
type UnknownProtocolError struct {
	Protocol string
}

func (e *UnknownProtocolError) Error() string {
	if e.Protocol == "" {
		return "no upload protocol configured"
	}
	return fmt.Sprintf("unknown upload protocol %s", e.Protocol)
}

// MissingFieldError is returned when a protocol needs a configuration field
// that is absent.
type MissingFieldError struct {
	Protocol string
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s upload requires %s to be set", e.Protocol, e.Field)
}

package container

import (
	"io"
)

// Closer is a dependency released on shutdown, Name is what shows up in the logs.
type Closer interface {
	io.Closer

	Name() string
}

type NamedCloser struct {
	name  string
	close func() error
}

func (d *NamedCloser) Close() error {
	return d.close()
}

func (d *NamedCloser) Name() string {
	return d.name
}

var _ Closer = (*NamedCloser)(nil)

func NewNamedCloser(name string, closer io.Closer) *NamedCloser {
	return &NamedCloser{
		name:  name,
		close: closer.Close,
	}
}

// NewNamedFunc wraps a release func that has no error to report, such as a worker pool drain.
func NewNamedFunc(name string, fn func()) *NamedCloser {
	return &NamedCloser{
		name: name,
		close: func() error {
			fn()
			return nil
		},
	}
}

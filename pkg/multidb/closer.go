package multidb

import (
	"fmt"
	"io"
)

// dbCloser closes one opened database, the error names which one failed.
type dbCloser struct {
	label  string
	driver Driver
	db     io.Closer
}

func (d *dbCloser) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close %s database '%s': %w", d.driver, d.label, err)
	}

	return nil
}

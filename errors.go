package gtfs

import (
	"fmt"

	"github.com/transitarchive/gtfs/constants"
)

// SourceError reports that an archive could not be opened, or that it is
// missing a table GTFS requires.
type SourceError struct {
	Reason string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// RowError reports a cell that failed type coercion. The whole file's
// transaction is rolled back when one is raised.
type RowError struct {
	File   constants.StaticFile
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d, column %q: invalid value %q: %s",
		e.File, e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

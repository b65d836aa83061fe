// Package warnings defines the non-fatal conditions an import surfaces.
package warnings

import (
	"fmt"

	"github.com/transitarchive/gtfs/constants"
)

// Warning is a non-fatal condition encountered while importing a feed.
type Warning interface {
	File() constants.StaticFile
	Error() string
}

// Sink receives warnings as they are raised. A nil Sink discards them.
type Sink func(Warning)

func (s Sink) Emit(w Warning) {
	if s != nil {
		s(w)
	}
}

// DanglingReference reports a row that named a natural key with no
// corresponding parent row. The reference was left null.
type DanglingReference struct {
	SourceFile constants.StaticFile
	RowNumber  int
	Column     string
	Key        string
}

func (w DanglingReference) File() constants.StaticFile {
	return w.SourceFile
}

func (w DanglingReference) Error() string {
	return fmt.Sprintf("row %d references unknown %s %q; reference left empty",
		w.RowNumber, w.Column, w.Key)
}

// SkippedRow reports a row that was dropped entirely, for example a stop
// time whose trip does not exist.
type SkippedRow struct {
	SourceFile constants.StaticFile
	RowNumber  int
	Reason     string
}

func (w SkippedRow) File() constants.StaticFile {
	return w.SourceFile
}

func (w SkippedRow) Error() string {
	return fmt.Sprintf("skipping row %d: %s", w.RowNumber, w.Reason)
}

// DuplicateRow reports a row whose unique key duplicates an earlier
// accepted row in the same file, or a row already committed to the feed
// by a previous import. First seen wins.
type DuplicateRow struct {
	SourceFile constants.StaticFile
	RowNumber  int
	Key        string
}

func (w DuplicateRow) File() constants.StaticFile {
	return w.SourceFile
}

func (w DuplicateRow) Error() string {
	return fmt.Sprintf("dropping row %d: duplicate of earlier row with key %q",
		w.RowNumber, w.Key)
}

// MissingColumns reports a header that lacks columns the table requires.
// The file's rows are skipped.
type MissingColumns struct {
	SourceFile constants.StaticFile
	Columns    []string
}

func (w MissingColumns) File() constants.StaticFile {
	return w.SourceFile
}

func (w MissingColumns) Error() string {
	return fmt.Sprintf("header is missing required columns %v", w.Columns)
}

package checker

import (
	"fmt"

	"github.com/cairn-backup/cairn/internal/errors"
)

// Summary is the structured result of one checker run: per-category counts
// plus all findings in the order they were reported. It lets callers detect
// inconsistencies without parsing printed text.
type Summary struct {
	CacheMismatches int
	PackErrors      int
	TreeErrors      int
	OtherErrors     int

	Findings []error
	Hints    []error

	fatal bool
}

// Record classifies and stores one finding.
func (s *Summary) Record(err error) {
	if err == nil {
		return
	}

	s.Findings = append(s.Findings, err)

	if errors.IsFatal(err) {
		s.fatal = true
	}

	var (
		cacheErr *ErrCacheMismatch
		packErr  *PackError
		treeErr  *Error
		kindErr  *ErrPackKind
		offErr   *ErrPackOffset
	)
	switch {
	case errors.As(err, &cacheErr):
		s.CacheMismatches++
	case errors.As(err, &packErr), errors.As(err, &kindErr), errors.As(err, &offErr):
		s.PackErrors++
	case errors.As(err, &treeErr):
		s.TreeErrors++
	default:
		s.OtherErrors++
	}
}

// RecordHint stores a non-error observation, e.g. a pack referenced by
// several index files.
func (s *Summary) RecordHint(err error) {
	if err != nil {
		s.Hints = append(s.Hints, err)
	}
}

// NumErrors returns the total number of findings.
func (s *Summary) NumErrors() int {
	return len(s.Findings)
}

// Fatal reports whether a fatal error ended the run early.
func (s *Summary) Fatal() bool {
	return s.fatal
}

func (s *Summary) String() string {
	if s.NumErrors() == 0 {
		return "no errors found"
	}

	return fmt.Sprintf("%d errors (%d cache, %d pack, %d tree, %d other)",
		s.NumErrors(), s.CacheMismatches, s.PackErrors, s.TreeErrors, s.OtherErrors)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// QuestionStore is the persistence boundary for question records. Find and
// FindOne never fail on zero matches; every other failure is a *StoreError.
type QuestionStore interface {
	Find(ctx context.Context, filter Filter) ([]QuestionRecord, error)
	FindOne(ctx context.Context, filter Filter) (*QuestionRecord, error)

	Create(ctx context.Context, record *QuestionRecord) error
	Update(ctx context.Context, id string, update QuestionUpdate) error
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context, records []QuestionRecord) (int, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Filter constrains a query. Zero-valued fields do not constrain.
type Filter struct {
	Kind                Kind
	Difficulty          Difficulty
	Categories          []string
	Text                string
	Tags                []string
	WithReferenceAnswer bool
	Limit               int
}

// impossible reports whether the filter names an out-of-enum value and so can
// match nothing.
func (f Filter) impossible() bool {
	return (f.Kind != "" && !f.Kind.Valid()) || (f.Difficulty != "" && !f.Difficulty.Valid())
}

// Key is a stable representation of the filter, used as a cache key.
func (f Filter) Key() string {
	cats := append([]string(nil), f.Categories...)
	sort.Strings(cats)
	tags := append([]string(nil), f.Tags...)
	sort.Strings(tags)

	parts := []string{
		"kind=" + string(f.Kind),
		"difficulty=" + string(f.Difficulty),
		"categories=" + strings.Join(cats, ","),
		"text=" + f.Text,
		"tags=" + strings.Join(tags, ","),
		"ref=" + strconv.FormatBool(f.WithReferenceAnswer),
		"limit=" + strconv.Itoa(f.Limit),
	}
	return strings.Join(parts, "|")
}

var (
	// ErrStore marks persistence failures (connectivity, malformed query).
	ErrStore = errors.New("question store failure")
	// ErrNotFound is returned by Update and Delete for unknown ids.
	ErrNotFound = errors.New("question not found")
)

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("question store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

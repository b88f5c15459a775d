package reconcile

import (
	"encoding/json"
	"fmt"
)

// PathError is a failure confined to one content path.
type PathError struct {
	Path string
	Err  error
}

func (e PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e PathError) Unwrap() error { return e.Err }

func (e PathError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}{e.Path, e.Err.Error()})
}

// Result counts the index changes made by one run.
type Result struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Deleted int         `json:"deleted"`
	Errors  []PathError `json:"errors"`
}

func newResult() *Result {
	return &Result{Errors: []PathError{}}
}

// Partial reports whether some paths failed while the run completed.
func (r *Result) Partial() bool {
	return len(r.Errors) > 0
}

// Changed reports whether the run modified the index.
func (r *Result) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

func (r *Result) fail(path string, err error) {
	r.Errors = append(r.Errors, PathError{Path: path, Err: err})
}

func (r *Result) String() string {
	return fmt.Sprintf("created=%d updated=%d deleted=%d errors=%d", r.Created, r.Updated, r.Deleted, len(r.Errors))
}

package retrieval

import "fmt"

// RetrievalError is a hard failure while acquiring the source document.
// Op is "list", "download" or "extract".
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

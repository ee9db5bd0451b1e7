package domain

import "errors"

// ListKind names one of the per-user lists.
type ListKind string

const (
	ListMemo ListKind = "MEMO"
	ListURL  ListKind = "URL"
)

// ErrIndexOutOfRange is returned by DeleteAt when the 1-based index does not
// address a stored entry.
var ErrIndexOutOfRange = errors.New("index out of range")

// Valid reports whether k is a supported list kind.
func (k ListKind) Valid() bool {
	return k == ListMemo || k == ListURL
}

// internal/storage/page.go
package storage

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is an offset window over an ordered listing.
type Page struct {
	Offset int
	Limit  int
}

// NewPage clamps skip to >= 0 and limit to [1, MaxLimit].
func NewPage(skip, limit int) Page {
	return Page{
		Offset: max(skip, 0),
		Limit:  min(max(limit, 1), MaxLimit),
	}
}

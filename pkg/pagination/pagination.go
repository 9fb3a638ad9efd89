package pagination

const (
	// DefaultLimit is the page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows one page can request.
	MaxLimit = 50
)

// Params holds page-number pagination inputs. Pages start at 1.
type Params struct {
	Page  int
	Limit int
}

// Meta is returned alongside every page.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Normalize fills defaults and clamps out-of-range values.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset is the number of rows skipped before this page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NewMeta describes the page p of a result set holding total rows.
func NewMeta(p Params, total int64) Meta {
	n := p.Normalize()
	pages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	return Meta{Total: total, Page: n.Page, Limit: n.Limit, TotalPages: pages}
}

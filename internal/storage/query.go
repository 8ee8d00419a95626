package storage

// SortOrder is the direction of an ordering
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortBy orders results by a single field
type SortBy struct {
	Field string
	Order SortOrder
}

// Query describes a Get request. The zero value selects every record in
// provider-default order. Builder methods return a modified copy.
type Query struct {
	where  Filter
	offset int
	limit  int
	order  *SortBy
}

// NewQuery returns an empty query
func NewQuery() Query {
	return Query{}
}

// FilterBy sets the selection filter
func (q Query) FilterBy(f Filter) Query {
	q.where = f
	return q
}

// Offset skips the first n records. Zero or negative means no offset.
func (q Query) Offset(n int) Query {
	if n < 0 {
		n = 0
	}
	q.offset = n
	return q
}

// Limit caps the number of returned records. Zero or negative means no limit.
func (q Query) Limit(n int) Query {
	if n < 0 {
		n = 0
	}
	q.limit = n
	return q
}

// OrderBy sets the result ordering
func (q Query) OrderBy(field string, order SortOrder) Query {
	if order != Desc {
		order = Asc
	}
	q.order = &SortBy{Field: field, Order: order}
	return q
}

// Where returns the query filter (may be nil)
func (q Query) Where() Filter {
	return q.where
}

// Page returns the offset and limit; zero means unset
func (q Query) Page() (offset, limit int) {
	return q.offset, q.limit
}

// Sort returns the ordering or nil for provider-default order
func (q Query) Sort() *SortBy {
	return q.order
}

package filter

// DefaultPageSize is the number of rows per table page.
const DefaultPageSize = 25

// PageCount returns ceil(total/size) with a floor of one page.
func PageCount(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	n := (total + size - 1) / size
	if n < 1 {
		return 1
	}
	return n
}

// ClampPage limits a 1-based page number to [1, pageCount].
func ClampPage(page, pageCount int) int {
	if page < 1 {
		return 1
	}
	if page > pageCount {
		return pageCount
	}
	return page
}

// Page holds one slice of a filtered result.
type Page[T any] struct {
	Rows    []T
	Number  int
	Count   int
	Size    int
	Total   int
	HasPrev bool
	HasNext bool
}

// Paginate returns rows [(n-1)*size, n*size) after clamping n to the valid range.
func Paginate[T any](rows []T, n, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	count := PageCount(len(rows), size)
	n = ClampPage(n, count)

	start := (n - 1) * size
	end := start + size
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}

	return Page[T]{
		Rows:    rows[start:end],
		Number:  n,
		Count:   count,
		Size:    size,
		Total:   len(rows),
		HasPrev: n > 1,
		HasNext: n < count,
	}
}

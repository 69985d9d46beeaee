// Package pagination provides sorting and pagination of rule collections.
package pagination

// DefaultPageSize is the ledger page size.
const DefaultPageSize = 25

// Result represents one page of a collection.
type Result[T any] struct {
	Data        []T `json:"data"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	TotalItems  int `json:"totalItems"`
	PageSize    int `json:"pageSize"`
}

// Paginate returns the requested page of items. totalPages is never below
// 1 and the page is clamped into [1, totalPages], so an out-of-range request
// yields the last page and an empty collection yields an empty page 1.
func Paginate[T any](items []T, page, pageSize int) Result[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	current := min(max(page, 1), totalPages)
	start := (current - 1) * pageSize
	end := min(start+pageSize, total)

	data := make([]T, 0, end-start)
	data = append(data, items[start:end]...)

	return Result[T]{
		Data:        data,
		TotalPages:  totalPages,
		CurrentPage: current,
		TotalItems:  total,
		PageSize:    pageSize,
	}
}


// internal/api/types/response.go
package types

// PaginatedResponse is the generic envelope for paginated query results,
// e.g. a buyer's purchase history.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
}

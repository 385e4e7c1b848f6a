package service

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// clampLimit keeps list page sizes within [1, maxPageSize].
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

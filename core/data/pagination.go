package data

// Pagination limits
const (
	MinPage     = 0
	MinPageSize = 1
	MaxPageSize = 1000
)

// GetPage returns page clamped to MinPage, or nil if page is nil
func GetPage(page *int) *int {
	if page == nil {
		return nil
	}
	p := max(*page, MinPage)
	return &p
}

// GetPageSize returns pageSize clamped to [MinPageSize, maxPageSize]. If pageSize is nil
// but page is set, maxPageSize is returned. If both are nil, nil is returned. A
// maxPageSize below 1 means MaxPageSize.
func GetPageSize(pageSize, page *int, maxPageSize int) *int {
	if maxPageSize < MinPageSize {
		maxPageSize = MaxPageSize
	}
	var size int
	switch {
	case pageSize != nil:
		size = max(*pageSize, MinPageSize)
	case page != nil:
		size = maxPageSize
	default:
		return nil
	}
	size = min(size, maxPageSize)
	return &size
}

// skipAndLimit returns the number of documents to skip and the limit for params.
// A zero limit means no limit.
func skipAndLimit(params ListParams) (skip int64, limit int64) {
	page := GetPage(params.Page)
	pageSize := GetPageSize(params.PageSize, params.Page, params.MaxPageSize)
	if pageSize == nil {
		return 0, 0
	}
	if page != nil {
		skip = int64(*page) * int64(*pageSize)
	}
	return skip, int64(*pageSize)
}

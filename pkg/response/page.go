package response

// PageResult carries one page of a listing plus its pagination metadata.
type PageResult[T any] struct {
	Total     int64 `json:"total"`
	PageCount int   `json:"page_count"`
	PageNow   int   `json:"page_now"`
	PageSize  int   `json:"page_size"`
	List      []T   `json:"list"`
}

// NewPageResult computes the page count from the total and page size.
func NewPageResult[T any](list []T, total int64, pageNow, pageSize int) PageResult[T] {
	if list == nil {
		list = []T{}
	}
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PageResult[T]{
		Total:     total,
		PageCount: pages,
		PageNow:   pageNow,
		PageSize:  pageSize,
		List:      list,
	}
}

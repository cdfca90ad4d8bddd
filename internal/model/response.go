package model

// Response is the JSON envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// NewErrorResponse builds a failure envelope. details may be empty.
func NewErrorResponse(message, details string) Response {
	return Response{Success: false, Message: message, Error: details}
}

// WithCode attaches a stable machine readable error code.
func (r Response) WithCode(code string) Response {
	r.Code = code
	return r
}

// Page is a paginated list payload.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalPages  int   `json:"totalPages"`
}

// NewPage computes the page count for total items split into pageSize chunks.
func NewPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page[T]{
		Items:       items,
		Total:       total,
		CurrentPage: page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
	}
}

// Pagination is the page/limit pair every list filter carries.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit into [1, maxLimit], using defLimit when unset.
func (p Pagination) Normalize(defLimit, maxLimit int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defLimit
	} else if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Skip is the number of records before the current page.
func (p Pagination) Skip() int64 {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}

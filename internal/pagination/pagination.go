// Package pagination holds the page and date-window parameters shared by the
// list endpoints.
package pagination

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Defaults fills in default values when page or page_size are not provided.
func (p *PageRequest) Defaults() {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = 20
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps a paginated list of items with metadata.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: int(math.Ceil(float64(totalItems) / float64(pageSize))),
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// DayLayout is the calendar-day format used for candle buckets and date filters.
const DayLayout = "2006-01-02"

// DefaultWindowDays is how far back a date window reaches when From is omitted.
const DefaultWindowDays = 30

// DateRange is an inclusive window of UTC calendar days.
type DateRange struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// Defaults fills an omitted bound relative to now: To defaults to today and
// From to DefaultWindowDays before To.
func (r *DateRange) Defaults(now time.Time) {
	if r.To == "" {
		r.To = now.UTC().Format(DayLayout)
	}
	if r.From == "" {
		to, err := time.Parse(DayLayout, r.To)
		if err != nil {
			to = now.UTC()
		}
		r.From = to.AddDate(0, 0, -DefaultWindowDays).Format(DayLayout)
	}
}

// Bounds returns the window as [start, end) instants in UTC.
func (r DateRange) Bounds() (time.Time, time.Time, error) {
	from, err := time.Parse(DayLayout, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(DayLayout, r.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}

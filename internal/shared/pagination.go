package shared

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultPerPage is the page size used when the caller does not pick one.
const DefaultPerPage = 10

// MaxPerPage caps caller-provided page sizes.
const MaxPerPage = 100

// MaxPage caps the requested page so offsets stay well inside int range.
const MaxPage = 1_000_000

// linksOnEachSide is how many numbered links surround the current page.
const linksOnEachSide = 3

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"current_page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"last_page"`
	From       int `json:"from"`
	To         int `json:"to"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	if totalPages < 1 {
		totalPages = 1
	}
	p := Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
	if total > 0 && p.Offset() < total {
		p.From = p.Offset() + 1
		p.To = min(p.Offset()+perPage, total)
	}
	return p
}

// Offset returns the SQL offset for the current page.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// PageLink is one entry of the paginator link bar.
type PageLink struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// BuildLinks builds previous, numbered and next links against base while
// keeping every other query parameter. Long page ranges are windowed around
// the current page with "..." separators between the first, middle and last
// blocks.
func (p Pagination) BuildLinks(base *url.URL) []PageLink {
	links := []PageLink{{URL: p.pageURL(base, p.Page-1), Label: "&laquo; Previous"}}
	for i, block := range p.window() {
		if i > 0 {
			links = append(links, PageLink{Label: "..."})
		}
		for page := block[0]; page <= block[1]; page++ {
			links = append(links, PageLink{URL: p.pageURL(base, page), Label: strconv.Itoa(page), Active: page == p.Page})
		}
	}
	return append(links, PageLink{URL: p.pageURL(base, p.Page+1), Label: "Next &raquo;"})
}

// window returns the inclusive page ranges to render.
func (p Pagination) window() [][2]int {
	last := p.TotalPages
	if last < linksOnEachSide*2+8 {
		return [][2]int{{1, last}}
	}
	size := linksOnEachSide + 4
	switch {
	case p.Page <= size:
		return [][2]int{{1, size + linksOnEachSide}, {last - 1, last}}
	case p.Page > last-size:
		return [][2]int{{1, 2}, {last - (size + linksOnEachSide - 1), last}}
	default:
		return [][2]int{{1, 2}, {p.Page - linksOnEachSide, p.Page + linksOnEachSide}, {last - 1, last}}
	}
}

func (p Pagination) pageURL(base *url.URL, page int) *string {
	if base == nil || page < 1 || page > p.TotalPages {
		return nil
	}
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// Page is a paginated listing as returned to clients.
type Page[T any] struct {
	Data []T `json:"data"`
	Pagination
	Links []PageLink `json:"links"`
}

// NewPage assembles a Page and its links.
func NewPage[T any](data []T, p Pagination, base *url.URL) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Pagination: p, Links: p.BuildLinks(base)}
}

// PageRequest is the shared paging input of list operations.
type PageRequest struct {
	Page    int
	PerPage int
}

// ParsePageRequest reads page and per_page from a query string.
func ParsePageRequest(q url.Values, defaultPerPage int) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

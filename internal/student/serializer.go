package student

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Detail is the full representation, including the computed field.
type Detail struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Course           string `json:"course"`
	DateOfJoining    string `json:"date_of_joining"`
	DaysSinceJoining *int   `json:"days_since_joining"`
}

// Summary is the list representation.
type Summary struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Course        string `json:"course"`
	DateOfJoining string `json:"date_of_joining"`
}

type PageResponse struct {
	Count    int       `json:"count"`
	Next     *string   `json:"next"`
	Previous *string   `json:"previous"`
	Results  []Summary `json:"results"`
}

// BulkCreateRequest keeps students raw so a non-list can be told apart
// from a list with bad items.
type BulkCreateRequest struct {
	Students json.RawMessage `json:"students"`
}

type BulkCreateResponse struct {
	Message  string   `json:"message"`
	Count    int      `json:"count"`
	Students []Detail `json:"students"`
}

func NewDetail(s *Student, today time.Time) Detail {
	return Detail{
		ID:               s.ID,
		Name:             s.Name,
		Email:            s.Email,
		Phone:            s.Phone,
		Course:           s.Course,
		DateOfJoining:    s.JoinedOn(),
		DaysSinceJoining: s.DaysSinceJoining(today),
	}
}

func NewSummary(s *Student) Summary {
	return Summary{
		ID:            s.ID,
		Name:          s.Name,
		Email:         s.Email,
		Course:        s.Course,
		DateOfJoining: s.JoinedOn(),
	}
}

func NewDetails(students []*Student, today time.Time) []Detail {
	out := make([]Detail, 0, len(students))
	for _, s := range students {
		out = append(out, NewDetail(s, today))
	}
	return out
}

// NewPageResponse builds the paginated envelope; next and previous are
// absolute URLs derived from r.
func NewPageResponse(page *Page, r *http.Request) PageResponse {
	results := make([]Summary, 0, len(page.Students))
	for i := range page.Students {
		results = append(results, NewSummary(&page.Students[i]))
	}

	resp := PageResponse{
		Count:   page.Total,
		Results: results,
	}
	if page.HasNext() {
		next := pageURL(r, page.Number+1)
		resp.Next = &next
	}
	if page.HasPrevious() {
		prev := pageURL(r, page.Number-1)
		resp.Previous = &prev
	}
	return resp
}

// pageURL rewrites the page parameter of the request URL. Page 1 drops
// the parameter entirely.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := r.URL.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

package student

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"student-records/internal/metrics"
	"student-records/internal/web"

	"github.com/gin-gonic/gin"
)

const surfaceWeb = "web"

const (
	flashCreated = "Student created successfully!"
	flashUpdated = "Student updated successfully!"
)

var formFields = []string{"name", "email", "phone", "course", "date_of_joining"}

// PageHandler serves the server-rendered pages.
type PageHandler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPageHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *PageHandler {
	return &PageHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *PageHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/", h.List)
	router.GET("/admin/students/", h.AdminList)
	router.GET("/new/", h.NewForm)
	router.POST("/new/", h.Create)
	router.GET("/:id/", h.Detail)
	router.GET("/:id/edit/", h.EditForm)
	router.POST("/:id/edit/", h.Update)
	router.GET("/:id/delete/", h.ConfirmDelete)
	router.POST("/:id/delete/", h.Delete)
}

func (h *PageHandler) List(c *gin.Context) {
	query := c.Query("q")

	page, err := pageNumber(c.Query("page"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), ListParams{
		Search:   query,
		Ordering: "-date_of_joining",
		Page:     page,
		PageSize: DefaultPageSize,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.metrics.RecordStudentsListViewed(c.Request.Context())

	web.Render(c, http.StatusOK, "student_list.html", gin.H{
		"Title":    "Students",
		"Query":    query,
		"Students": result.Students,
		"Page":     result,
	})
}

// filterChoice is a link in the operator list's filter sidebar.
type filterChoice struct {
	Label    string
	URL      string
	Selected bool
}

// AdminList is the operator view of the collection: phone is shown and
// searched, and the list filters by course and joining date.
func (h *PageHandler) AdminList(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("q")
	course := c.Query("course")
	joined := c.Query("joined")

	page, err := pageNumber(c.Query("page"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	params := ListParams{
		Search:       query,
		SearchFields: AdminSearchFields,
		Course:       course,
		Ordering:     c.Query("ordering"),
		Page:         page,
		PageSize:     AdminPageSize,
	}
	if from, before, ok := JoinedRange(joined, h.service.Today()); ok {
		params.JoinedFrom, params.JoinedBefore = from, before
	} else {
		joined = ""
	}

	result, err := h.service.List(ctx, params)
	if err != nil {
		h.handleError(c, err)
		return
	}

	courses, err := h.service.Courses(ctx)
	if err != nil {
		h.handleError(c, err)
		return
	}

	courseChoices := []filterChoice{{Label: "All", URL: filterURL(c.Request, "course", ""), Selected: course == ""}}
	for _, name := range courses {
		courseChoices = append(courseChoices, filterChoice{
			Label:    name,
			URL:      filterURL(c.Request, "course", name),
			Selected: name == course,
		})
	}

	joinedChoices := make([]filterChoice, 0, len(JoinedFilters))
	for _, f := range JoinedFilters {
		joinedChoices = append(joinedChoices, filterChoice{
			Label:    f.Label,
			URL:      filterURL(c.Request, "joined", f.Key),
			Selected: f.Key == joined,
		})
	}

	data := gin.H{
		"Title":    "Select student to change",
		"Query":    query,
		"Students": result.Students,
		"Page":     result,
		"Courses":  courseChoices,
		"Joined":   joinedChoices,
	}
	if result.HasPrevious() {
		data["PreviousURL"] = pageLink(c.Request, result.Number-1)
	}
	if result.HasNext() {
		data["NextURL"] = pageLink(c.Request, result.Number+1)
	}

	h.metrics.RecordStudentsListViewed(ctx)

	web.Render(c, http.StatusOK, "admin_student_list.html", data)
}

// filterURL is the current list URL with one filter replaced. An empty
// value removes the filter. The page resets to 1.
func filterURL(r *http.Request, key, value string) string {
	query := r.URL.Query()
	query.Del("page")
	if value == "" {
		query.Del(key)
	} else {
		query.Set(key, value)
	}
	return (&url.URL{Path: r.URL.Path, RawQuery: query.Encode()}).String()
}

// pageLink is the current list URL at another page, keeping the filters.
func pageLink(r *http.Request, page int) string {
	query := r.URL.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	return (&url.URL{Path: r.URL.Path, RawQuery: query.Encode()}).String()
}

func (h *PageHandler) Detail(c *gin.Context) {
	student, ok := h.load(c)
	if !ok {
		return
	}

	h.metrics.RecordStudentViewed(c.Request.Context())

	web.Render(c, http.StatusOK, "student_detail.html", gin.H{
		"Title":   student.Name,
		"Student": student,
	})
}

func (h *PageHandler) NewForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, "Add Student", "/", map[string]string{}, nil)
}

func (h *PageHandler) Create(c *gin.Context) {
	in, values := formInput(c)

	student, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.renderForm(c, http.StatusOK, "Add Student", "/", values, verr.Fields)
			return
		}
		h.handleError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "student created", "id", student.ID, "surface", surfaceWeb)
	h.metrics.RecordStudentsCreated(c.Request.Context(), surfaceWeb, 1)

	web.SetFlash(c, flashCreated)
	c.Redirect(http.StatusFound, student.URL())
}

func (h *PageHandler) EditForm(c *gin.Context) {
	student, ok := h.load(c)
	if !ok {
		return
	}

	values := map[string]string{
		"name":            student.Name,
		"email":           student.Email,
		"phone":           student.Phone,
		"course":          student.Course,
		"date_of_joining": student.JoinedOn(),
	}
	h.renderForm(c, http.StatusOK, "Edit Student", student.URL(), values, nil)
}

// Update applies the fields present in the submitted form.
func (h *PageHandler) Update(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		h.handleError(c, ErrStudentNotFound)
		return
	}

	in, values := formInput(c)

	student, err := h.service.Update(c.Request.Context(), id, in, true)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			cancel := (&Student{ID: id}).URL()
			h.renderForm(c, http.StatusOK, "Edit Student", cancel, values, verr.Fields)
			return
		}
		h.handleError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "student updated", "id", student.ID, "surface", surfaceWeb)
	h.metrics.RecordStudentUpdated(c.Request.Context(), surfaceWeb)

	web.SetFlash(c, flashUpdated)
	c.Redirect(http.StatusFound, student.URL())
}

func (h *PageHandler) ConfirmDelete(c *gin.Context) {
	student, ok := h.load(c)
	if !ok {
		return
	}

	web.Render(c, http.StatusOK, "student_confirm_delete.html", gin.H{
		"Title":   "Delete " + student.Name,
		"Student": student,
	})
}

func (h *PageHandler) Delete(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		h.handleError(c, ErrStudentNotFound)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "student deleted", "id", id, "surface", surfaceWeb)
	h.metrics.RecordStudentDeleted(c.Request.Context(), surfaceWeb)

	c.Redirect(http.StatusFound, "/")
}

// load fetches the record named by :id, rendering the error page itself
// when that fails.
func (h *PageHandler) load(c *gin.Context) (*Student, bool) {
	id, ok := studentID(c)
	if !ok {
		h.handleError(c, ErrStudentNotFound)
		return nil, false
	}

	student, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return student, true
}

func (h *PageHandler) renderForm(c *gin.Context, status int, title, cancel string, values map[string]string, fieldErrors map[string][]string) {
	web.Render(c, status, "student_form.html", gin.H{
		"Title":  title,
		"Cancel": cancel,
		"Form":   values,
		"Errors": fieldErrors,
	})
}

func (h *PageHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrStudentNotFound), errors.Is(err, ErrInvalidPage):
		web.Render(c, http.StatusNotFound, "not_found.html", gin.H{"Title": "Not found"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "page request failed", "path", c.Request.URL.Path, "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}

// formInput reads the student fields from a posted form. Fields missing
// from the form stay nil; values echoes what was submitted.
func formInput(c *gin.Context) (Input, map[string]string) {
	values := make(map[string]string, len(formFields))
	lookup := func(field string) *string {
		v, ok := c.GetPostForm(field)
		if !ok {
			return nil
		}
		values[field] = v
		return &v
	}

	in := Input{
		Name:          lookup("name"),
		Email:         lookup("email"),
		Phone:         lookup("phone"),
		Course:        lookup("course"),
		DateOfJoining: lookup("date_of_joining"),
	}
	return in, values
}

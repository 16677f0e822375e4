package student

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"student-records/internal/metrics"

	"github.com/gin-gonic/gin"
)

const surfaceAPI = "api"

// APIHandler serves the JSON API under /api/students/.
type APIHandler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewAPIHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *APIHandler {
	return &APIHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *APIHandler) RegisterRoutes(router gin.IRouter) {
	students := router.Group("/students")
	students.GET("/", h.ListStudents)
	students.POST("/", h.CreateStudent)
	students.GET("/statistics/", h.Statistics)
	students.POST("/bulk_create/", h.BulkCreate)
	students.GET("/:id/", h.GetStudent)
	students.PUT("/:id/", h.UpdateStudent)
	students.PATCH("/:id/", h.PartialUpdateStudent)
	students.DELETE("/:id/", h.DeleteStudent)
}

func (h *APIHandler) ListStudents(c *gin.Context) {
	page, err := pageNumber(c.Query("page"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	params := ListParams{
		Search:   c.Query("search"),
		Course:   c.Query("course"),
		Ordering: c.Query("ordering"),
		Page:     page,
		PageSize: DefaultPageSize,
	}

	h.logger.InfoContext(c.Request.Context(), "listing students",
		"search", params.Search, "course", params.Course, "ordering", params.Ordering, "page", page)

	result, err := h.service.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.metrics.RecordStudentsListViewed(c.Request.Context())

	c.JSON(http.StatusOK, NewPageResponse(result, c.Request))
}

func (h *APIHandler) CreateStudent(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
		return
	}

	student, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "student created", "id", student.ID)
	h.metrics.RecordStudentsCreated(c.Request.Context(), surfaceAPI, 1)

	c.JSON(http.StatusCreated, NewDetail(student, h.service.Today()))
}

func (h *APIHandler) GetStudent(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		h.handleServiceError(c, ErrStudentNotFound)
		return
	}

	student, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.metrics.RecordStudentViewed(c.Request.Context())

	c.JSON(http.StatusOK, NewDetail(student, h.service.Today()))
}

func (h *APIHandler) UpdateStudent(c *gin.Context) {
	h.update(c, false)
}

func (h *APIHandler) PartialUpdateStudent(c *gin.Context) {
	h.update(c, true)
}

func (h *APIHandler) update(c *gin.Context, partial bool) {
	id, ok := studentID(c)
	if !ok {
		h.handleServiceError(c, ErrStudentNotFound)
		return
	}

	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
		return
	}

	student, err := h.service.Update(c.Request.Context(), id, in, partial)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "student updated", "id", id, "partial", partial)
	h.metrics.RecordStudentUpdated(c.Request.Context(), surfaceAPI)

	c.JSON(http.StatusOK, NewDetail(student, h.service.Today()))
}

func (h *APIHandler) DeleteStudent(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		h.handleServiceError(c, ErrStudentNotFound)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "student deleted", "id", id)
	h.metrics.RecordStudentDeleted(c.Request.Context(), surfaceAPI)

	c.Status(http.StatusNoContent)
}

func (h *APIHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.metrics.RecordStatisticsRequested(c.Request.Context())

	c.JSON(http.StatusOK, stats)
}

func (h *APIHandler) BulkCreate(c *gin.Context) {
	var req BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
		return
	}

	raw := bytes.TrimSpace(req.Students)
	if len(raw) == 0 || raw[0] != '[' {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a list of students."})
		return
	}

	var items []Input
	if err := json.Unmarshal(raw, &items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Each student must be an object of string fields."})
		return
	}

	h.logger.InfoContext(c.Request.Context(), "bulk creating students", "count", len(items))

	students, err := h.service.BulkCreate(c.Request.Context(), items)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.metrics.RecordStudentsCreated(c.Request.Context(), surfaceAPI, len(students))

	c.JSON(http.StatusCreated, BulkCreateResponse{
		Message:  fmt.Sprintf("Successfully created %d students", len(students)),
		Count:    len(students),
		Students: NewDetails(students, h.service.Today()),
	})
}

func (h *APIHandler) handleServiceError(c *gin.Context, err error) {
	var verr *ValidationError
	var berr *BulkValidationError

	switch {
	case errors.As(err, &verr):
		h.logger.InfoContext(c.Request.Context(), "validation failed", "fields", verr.Fields)
		c.JSON(http.StatusBadRequest, verr.Fields)
	case errors.As(err, &berr):
		h.logger.InfoContext(c.Request.Context(), "bulk validation failed", "error", berr.Error())
		c.JSON(http.StatusBadRequest, berr.Items)
	case errors.Is(err, ErrStudentNotFound):
		h.logger.InfoContext(c.Request.Context(), "student not found")
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.Is(err, ErrInvalidPage):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
	default:
		h.logger.ErrorContext(c.Request.Context(), "internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}

// studentID parses the :id path parameter. Anything that is not a
// positive integer cannot name a record.
func studentID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pageNumber(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, ErrInvalidPage
	}
	return page, nil
}

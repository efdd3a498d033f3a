package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/authority"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/service"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// StudentPortalHandler serves the exam-taking endpoints the runner calls.
type StudentPortalHandler struct {
	examService *service.ExamAuthorityService
	log         zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(examService *service.ExamAuthorityService, log zerolog.Logger) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService: examService,
		log:         log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetEligibility godoc
// GET /api/v1/student/exams/:exam_id/eligibility
// Reports whether the student may start the exam and how many attempts remain.
func (h *StudentPortalHandler) GetEligibility(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	payload, err := h.examService.Eligibility(c.Request.Context(), c.Param("exam_id"), claims.UserID, claims.ClassID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetDefinition godoc
// GET /api/v1/student/exams/:exam_id/definition
// Returns the exam without its answer key. Only served while eligible.
func (h *StudentPortalHandler) GetDefinition(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	payload, err := h.examService.Definition(c.Request.Context(), c.Param("exam_id"), claims.UserID, claims.ClassID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// Submit godoc
// POST /api/v1/student/exams/:exam_id/submissions
// Grades one attempt.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req authority.SubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	payload, err := h.examService.Submit(c.Request.Context(), c.Param("exam_id"), claims.UserID, claims.ClassID, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// fail maps service errors to status codes. Messages carried by a
// StatusError are shown to the student verbatim.
func (h *StudentPortalHandler) fail(c *gin.Context, err error) {
	message := ""
	var se *service.StatusError
	if errors.As(err, &se) {
		message = se.Message
	}

	var (
		status int
		code   response.ErrCode
	)
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		status, code = http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrExamForbidden):
		status, code = http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrExamNotAvailable):
		status, code = http.StatusConflict, response.ErrExamNotAvailable
	case errors.Is(err, service.ErrAttemptsExhausted):
		status, code = http.StatusConflict, response.ErrAttemptsExhausted
	case errors.Is(err, service.ErrWindowClosed):
		status, code = http.StatusGone, response.ErrExamWindowClosed
	case errors.Is(err, service.ErrUnknownQuestion):
		status, code = http.StatusUnprocessableEntity, response.ErrUnknownQuestion
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if message == "" {
		response.Fail(c, status, code)
		return
	}
	response.FailWithMessage(c, status, code, message)
}

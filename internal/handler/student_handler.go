package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/middleware"
	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/response"
	"github.com/courseworks/registrar-backend/internal/service"
	"github.com/courseworks/registrar-backend/internal/validator"
)

// StudentHandler handles the student-facing enrollment endpoints.
type StudentHandler struct {
	enrollmentService *service.EnrollmentService
	classService      *service.ClassService
	userService       *service.UserService
	log               zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(
	enrollmentService *service.EnrollmentService,
	classService *service.ClassService,
	userService *service.UserService,
	log zerolog.Logger,
) *StudentHandler {
	return &StudentHandler{
		enrollmentService: enrollmentService,
		classService:      classService,
		userService:       userService,
		log:               log.With().Str("component", "student_handler").Logger(),
	}
}

// GetAddClass godoc
// GET /api/v1/student/add-class
// Returns the full class list plus the department filter values.
func (h *StudentHandler) GetAddClass(c *gin.Context) {
	classes, err := h.classService.List(c.Request.Context(), false)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	departments, err := h.classService.Departments(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"classes":     classes,
		"departments": departments,
	})
}

// AddClass godoc
// POST /api/v1/student/add-class
// Enrolls the student: the class snapshot is appended to their enrolled
// list and they are appended to the class roster, both or neither.
func (h *StudentHandler) AddClass(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.EnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.enrollmentService.Enroll(c.Request.Context(), claims.UserID, req.CourseNumber)
	if err != nil {
		h.failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": class})
}

// DropClass godoc
// POST /api/v1/student/drop-class
// Removes the student's membership from both sides. The class record
// itself is untouched; other students stay enrolled.
func (h *StudentHandler) DropClass(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.DropRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.enrollmentService.Drop(c.Request.Context(), claims.UserID, req.DropField); err != nil {
		h.failEnrollment(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Class dropped successfully!"})
}

// GetCourseDictionary godoc
// GET /api/v1/student/course-dictionary
// Returns every class, sorted by semester ascending.
func (h *StudentHandler) GetCourseDictionary(c *gin.Context) {
	classes, err := h.classService.List(c.Request.Context(), true)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// SearchCourseDictionary godoc
// POST /api/v1/student/course-dictionary
// Case-insensitive substring search across the class's descriptive fields.
func (h *StudentHandler) SearchCourseDictionary(c *gin.Context) {
	var req model.SearchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	classes, err := h.classService.Search(c.Request.Context(), req.Search)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// ChangePassword godoc
// POST /api/v1/student/change-password
// Applies the credential change with accumulated validation messages.
func (h *StudentHandler) ChangePassword(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.ChangePasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	msgs, err := h.userService.ChangePassword(c.Request.Context(), claims.UserID, req)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("change password failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if len(msgs) > 0 {
		response.FailValidation(c, http.StatusBadRequest, msgs, nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password successfully updated!"})
}

// failEnrollment maps coordinator errors onto API error codes.
func (h *StudentHandler) failEnrollment(c *gin.Context, err error) {
	var partial *service.PartialFailureError
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrClassFull):
		response.Fail(c, http.StatusConflict, response.ErrClassFull)
	case errors.Is(err, service.ErrAlreadyEnrolled):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyEnrolled)
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusBadRequest, response.ErrNotEnrolled)
	case errors.As(err, &partial):
		h.log.Error().Err(err).Str("op", partial.Op).Str("course_number", partial.CourseNumber).
			Int("student_id", partial.StudentID).Msg("enrollment partially applied")
		response.Fail(c, http.StatusInternalServerError, response.ErrPartialFailure)
	default:
		h.log.Error().Err(err).Msg("enrollment operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

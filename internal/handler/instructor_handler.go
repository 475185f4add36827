package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/middleware"
	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/repository"
	"github.com/courseworks/registrar-backend/internal/response"
	"github.com/courseworks/registrar-backend/internal/service"
	"github.com/courseworks/registrar-backend/internal/validator"
)

// InstructorHandler handles the instructor-facing class management
// endpoints.
type InstructorHandler struct {
	enrollmentService *service.EnrollmentService
	classService      *service.ClassService
	userService       *service.UserService
	log               zerolog.Logger
}

// NewInstructorHandler creates a new InstructorHandler.
func NewInstructorHandler(
	enrollmentService *service.EnrollmentService,
	classService *service.ClassService,
	userService *service.UserService,
	log zerolog.Logger,
) *InstructorHandler {
	return &InstructorHandler{
		enrollmentService: enrollmentService,
		classService:      classService,
		userService:       userService,
		log:               log.With().Str("component", "instructor_handler").Logger(),
	}
}

// CreateClass godoc
// POST /api/v1/instructor/create-class
// Validates the form, rejects duplicate course numbers and persists a new
// class owned by the caller. Validation failures return every violated
// rule at once, with the submitted input echoed back.
func (h *InstructorHandler) CreateClass(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	creator, err := h.userService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	class, msgs, err := h.classService.Create(c.Request.Context(), req, creator)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCourseNumber) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		var partial *service.PartialFailureError
		if errors.As(err, &partial) {
			h.log.Error().Err(err).Str("course_number", partial.CourseNumber).Msg("class creation partially applied")
			response.Fail(c, http.StatusInternalServerError, response.ErrPartialFailure)
			return
		}
		h.log.Error().Err(err).Msg("class creation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if len(msgs) > 0 {
		response.FailValidation(c, http.StatusBadRequest, msgs, req)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"class": class})
}

// DeleteClass godoc
// POST /api/v1/instructor/delete-class
// Deletes a class the caller owns and purges the reference from every
// enrolled student's list.
func (h *InstructorHandler) DeleteClass(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.DeleteClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.enrollmentService.DeleteClass(c.Request.Context(), claims.UserID, req.DeleteField)
	if err != nil {
		var partial *service.PartialFailureError
		switch {
		case errors.Is(err, service.ErrClassNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotClassOwner):
			response.Fail(c, http.StatusForbidden, response.ErrNotClassOwner)
		case errors.As(err, &partial):
			h.log.Error().Err(err).Str("course_number", partial.CourseNumber).Msg("class deletion partially applied")
			response.Fail(c, http.StatusInternalServerError, response.ErrPartialFailure)
		default:
			h.log.Error().Err(err).Msg("class deletion failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	h.classService.InvalidateDepartmentCache(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"message": "Class deleted successfully!"})
}

// GetCourseDictionary godoc
// GET /api/v1/instructor/course-dictionary
// Returns every class, sorted by semester ascending.
func (h *InstructorHandler) GetCourseDictionary(c *gin.Context) {
	classes, err := h.classService.List(c.Request.Context(), true)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// SearchCourseDictionary godoc
// POST /api/v1/instructor/course-dictionary
// Case-insensitive substring search across the class's descriptive fields.
func (h *InstructorHandler) SearchCourseDictionary(c *gin.Context) {
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
// POST /api/v1/instructor/change-password
// Applies the credential change with accumulated validation messages.
func (h *InstructorHandler) ChangePassword(c *gin.Context) {
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

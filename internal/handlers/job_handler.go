package handlers

import (
	"net/http"
	"strconv"

	"github.com/amitdubeyup/jobpay-backend/internal/database"
	"github.com/amitdubeyup/jobpay-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobHandler struct {
	db *gorm.DB
}

func NewJobHandler() *JobHandler {
	return &JobHandler{
		db: database.GetDBManager().DB,
	}
}

// CreateJob creates a job posting
// @Summary Create a job posting
// @Description Create a new job posting (employer only)
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body JobRequest true "Job data"
// @Security BearerAuth
// @Success 201 {object} models.Job
// @Failure 400 {object} ErrorResponse
// @Router /api/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	job := models.Job{
		JobID:       uuid.New().String(),
		EmployerID:  c.GetString("user_id"),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		SalaryMin:   req.SalaryMin,
		SalaryMax:   req.SalaryMax,
		Status:      "open",
	}

	if err := h.db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create job"})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// ListJobs returns open job postings, paginated.
func (h *JobHandler) ListJobs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var jobs []models.Job
	query := h.db.Where("status = ?", "open")
	if location := c.Query("location"); location != "" {
		query = query.Where("location = ?", location)
	}
	if err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "page": page})
}

// GetJob returns one job posting.
func (h *JobHandler) GetJob(c *gin.Context) {
	var job models.Job
	if err := h.db.Where("job_id = ?", c.Param("id")).First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// UpdateJob updates a posting owned by the caller.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	var job models.Job
	if err := h.db.Where("job_id = ? AND employer_id = ?", c.Param("id"), c.GetString("user_id")).First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Job not found"})
		return
	}

	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	job.Title = req.Title
	job.Description = req.Description
	job.Location = req.Location
	job.SalaryMin = req.SalaryMin
	job.SalaryMax = req.SalaryMax
	if req.Status != "" {
		job.Status = req.Status
	}

	if err := h.db.Save(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob removes a posting owned by the caller.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	result := h.db.Where("job_id = ? AND employer_id = ?", c.Param("id"), c.GetString("user_id")).Delete(&models.Job{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete job"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Job not found"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Job deleted"})
}

// ApplyToJob files an application for the caller.
func (h *JobHandler) ApplyToJob(c *gin.Context) {
	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	jobID := c.Param("id")
	userID := c.GetString("user_id")

	var job models.Job
	if err := h.db.Where("job_id = ? AND status = ?", jobID, "open").First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Job not found or closed"})
		return
	}

	var existing models.Application
	if err := h.db.Where("job_id = ? AND applicant_id = ?", jobID, userID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Already applied"})
		return
	}

	application := models.Application{
		JobID:       jobID,
		ApplicantID: userID,
		CoverLetter: req.CoverLetter,
		Status:      "submitted",
	}
	if err := h.db.Create(&application).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to submit application"})
		return
	}

	c.JSON(http.StatusCreated, application)
}

// ListApplications returns the caller's applications.
func (h *JobHandler) ListApplications(c *gin.Context) {
	var applications []models.Application
	if err := h.db.Where("applicant_id = ?", c.GetString("user_id")).Order("created_at DESC").Find(&applications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch applications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": applications})
}

// BookmarkJob saves a posting for later.
func (h *JobHandler) BookmarkJob(c *gin.Context) {
	bookmark := models.Bookmark{
		UserID: c.GetString("user_id"),
		JobID:  c.Param("id"),
	}
	if err := h.db.Create(&bookmark).Error; err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Already bookmarked"})
		return
	}
	c.JSON(http.StatusCreated, bookmark)
}

// RemoveBookmark deletes a saved posting.
func (h *JobHandler) RemoveBookmark(c *gin.Context) {
	result := h.db.Where("user_id = ? AND job_id = ?", c.GetString("user_id"), c.Param("id")).Delete(&models.Bookmark{})
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Bookmark not found"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Bookmark removed"})
}

// ListBookmarks returns the caller's saved postings.
func (h *JobHandler) ListBookmarks(c *gin.Context) {
	var bookmarks []models.Bookmark
	if err := h.db.Where("user_id = ?", c.GetString("user_id")).Order("created_at DESC").Find(&bookmarks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch bookmarks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": bookmarks})
}

type JobRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	SalaryMin   uint   `json:"salary_min"`
	SalaryMax   uint   `json:"salary_max"`
	Status      string `json:"status"`
}

type ApplicationRequest struct {
	CoverLetter string `json:"cover_letter"`
}

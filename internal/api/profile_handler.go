package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"devfolio/internal/api/middleware"
	"devfolio/internal/collection"
	"devfolio/internal/database"
	"devfolio/internal/relation"
)

// ProfileHandler 负责个人资料下的有序集合与技术栈关联。
type ProfileHandler struct {
	db       *gorm.DB
	replacer *collection.Replacer
	syncer   *relation.Syncer
}

// NewProfileHandler 构造 ProfileHandler。
func NewProfileHandler(db *gorm.DB, replacer *collection.Replacer, syncer *relation.Syncer) *ProfileHandler {
	return &ProfileHandler{
		db:       db,
		replacer: replacer,
		syncer:   syncer,
	}
}

type educationItem struct {
	School      string `json:"school" binding:"required,max=255"`
	Degree      string `json:"degree" binding:"max=128"`
	Field       string `json:"field" binding:"max=128"`
	StartYear   int    `json:"start_year"`
	EndYear     int    `json:"end_year"`
	Description string `json:"description"`
}

type experienceItem struct {
	Company     string `json:"company" binding:"required,max=255"`
	Title       string `json:"title" binding:"required,max=255"`
	Location    string `json:"location" binding:"max=128"`
	StartDate   string `json:"start_date" binding:"max=32"`
	EndDate     string `json:"end_date" binding:"max=32"`
	Description string `json:"description"`
}

type skillItem struct {
	Name  string `json:"name" binding:"required,max=128"`
	Level string `json:"level" binding:"max=32"`
}

type replaceEducationRequest struct {
	Items []educationItem `json:"items" binding:"required"`
}

type replaceExperienceRequest struct {
	Items []experienceItem `json:"items" binding:"required"`
}

type replaceSkillsRequest struct {
	Items []skillItem `json:"items" binding:"required"`
}

// ReplaceEducation 用提交列表整体替换教育经历，返回新行集。
func (h *ProfileHandler) ReplaceEducation(c *gin.Context) {
	var req replaceEducationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	specs := make([]collection.EducationSpec, 0, len(req.Items))
	for _, item := range req.Items {
		specs = append(specs, collection.EducationSpec{
			School:      item.School,
			Degree:      item.Degree,
			Field:       item.Field,
			StartYear:   item.StartYear,
			EndYear:     item.EndYear,
			Description: item.Description,
		})
	}

	rows, err := h.replacer.ReplaceEducation(c.Request.Context(), userID, specs)
	if err != nil {
		middleware.LoggerFromContext(c).Error("replace education failed", slog.Any("error", err))
		Internal(c, "failed to replace education")
		return
	}

	c.JSON(http.StatusOK, rows)
}

// ReplaceExperience 用提交列表整体替换工作经历。
func (h *ProfileHandler) ReplaceExperience(c *gin.Context) {
	var req replaceExperienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	specs := make([]collection.ExperienceSpec, 0, len(req.Items))
	for _, item := range req.Items {
		specs = append(specs, collection.ExperienceSpec{
			Company:     item.Company,
			Title:       item.Title,
			Location:    item.Location,
			StartDate:   item.StartDate,
			EndDate:     item.EndDate,
			Description: item.Description,
		})
	}

	rows, err := h.replacer.ReplaceExperience(c.Request.Context(), userID, specs)
	if err != nil {
		middleware.LoggerFromContext(c).Error("replace experience failed", slog.Any("error", err))
		Internal(c, "failed to replace experience")
		return
	}

	c.JSON(http.StatusOK, rows)
}

// ReplaceSkills 用提交列表整体替换技能。
func (h *ProfileHandler) ReplaceSkills(c *gin.Context) {
	var req replaceSkillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	specs := make([]collection.SkillSpec, 0, len(req.Items))
	for _, item := range req.Items {
		specs = append(specs, collection.SkillSpec{
			Name:  item.Name,
			Level: item.Level,
		})
	}

	rows, err := h.replacer.ReplaceSkills(c.Request.Context(), userID, specs)
	if err != nil {
		middleware.LoggerFromContext(c).Error("replace skills failed", slog.Any("error", err))
		Internal(c, "failed to replace skills")
		return
	}

	c.JSON(http.StatusOK, rows)
}

// ListEducation 按 sort_order 返回教育经历。
func (h *ProfileHandler) ListEducation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var rows []database.Education
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("sort_order ASC").
		Find(&rows).Error; err != nil {
		Internal(c, "failed to list education")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListExperience 按 sort_order 返回工作经历。
func (h *ProfileHandler) ListExperience(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var rows []database.Experience
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("sort_order ASC").
		Find(&rows).Error; err != nil {
		Internal(c, "failed to list experience")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListSkills 按 sort_order 返回技能。
func (h *ProfileHandler) ListSkills(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var rows []database.Skill
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("sort_order ASC").
		Find(&rows).Error; err != nil {
		Internal(c, "failed to list skills")
		return
	}
	c.JSON(http.StatusOK, rows)
}

type syncIDsRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

type syncNamesRequest struct {
	Names []string `json:"names" binding:"required"`
}

// SyncLanguages 把编程语言关联同步为提交的 id 集合。
func (h *ProfileHandler) SyncLanguages(c *gin.Context) {
	h.syncCatalog(c, "languages", h.syncer.SyncLanguages)
}

// SyncFrameworks 把框架关联同步为提交的 id 集合。
func (h *ProfileHandler) SyncFrameworks(c *gin.Context) {
	h.syncCatalog(c, "frameworks", h.syncer.SyncFrameworks)
}

// SyncDatabases 把数据库产品关联同步为提交的 id 集合。
func (h *ProfileHandler) SyncDatabases(c *gin.Context) {
	h.syncCatalog(c, "databases", h.syncer.SyncDatabases)
}

func (h *ProfileHandler) syncCatalog(c *gin.Context, relationName string, sync func(ctx context.Context, ownerID uint, ids []uint) error) {
	var req syncIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if err := sync(c.Request.Context(), userID, req.IDs); err != nil {
		if errors.Is(err, relation.ErrUnknownReference) {
			NotFound(c, err.Error())
			return
		}
		middleware.LoggerFromContext(c).Error("sync "+relationName+" failed", slog.Any("error", err))
		Internal(c, "failed to sync "+relationName)
		return
	}

	c.Status(http.StatusNoContent)
}

// SyncTags 把标签关联同步为提交的名字集合，返回解析后的标签实体。
func (h *ProfileHandler) SyncTags(c *gin.Context) {
	var req syncNamesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	tags, err := h.syncer.SyncTags(c.Request.Context(), userID, req.Names)
	if err != nil {
		middleware.LoggerFromContext(c).Error("sync tags failed", slog.Any("error", err))
		Internal(c, "failed to sync tags")
		return
	}

	c.JSON(http.StatusOK, tags)
}

// GetStack 返回用户当前关联的全部技术栈与标签。
func (h *ProfileHandler) GetStack(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	err := h.db.WithContext(c.Request.Context()).
		Preload("Languages").
		Preload("Frameworks").
		Preload("Databases").
		Preload("Tags").
		First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		Internal(c, "failed to load stack")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"languages":  user.Languages,
		"frameworks": user.Frameworks,
		"databases":  user.Databases,
		"tags":       user.Tags,
	})
}

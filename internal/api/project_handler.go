package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"devfolio/internal/api/middleware"
	"devfolio/internal/database"
	"devfolio/internal/ordering"
	"devfolio/internal/relation"
)

var errInvalidID = errors.New("invalid id")

// ProjectHandler 负责项目的增删改查、置顶与技术栈同步。
type ProjectHandler struct {
	db     *gorm.DB
	pins   *ordering.Service
	syncer *relation.Syncer
}

// NewProjectHandler 构造 ProjectHandler。
func NewProjectHandler(db *gorm.DB, pins *ordering.Service, syncer *relation.Syncer) *ProjectHandler {
	return &ProjectHandler{
		db:     db,
		pins:   pins,
		syncer: syncer,
	}
}

type projectRequest struct {
	Title      string         `json:"title" binding:"required,max=255"`
	Summary    string         `json:"summary"`
	RepoURL    string         `json:"repo_url" binding:"max=512"`
	DemoURL    string         `json:"demo_url" binding:"max=512"`
	Highlights datatypes.JSON `json:"highlights"`
	Pinned     *bool          `json:"pinned"`
	PinOrder   *int           `json:"pin_order"`
}

type pinRequest struct {
	Pinned   bool `json:"pinned"`
	PinOrder *int `json:"pin_order"`
}

// CreateProject 创建项目；请求可同时要求置顶。
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	project := database.Project{
		UserID:     userID,
		Title:      req.Title,
		Summary:    req.Summary,
		RepoURL:    req.RepoURL,
		DemoURL:    req.DemoURL,
		Highlights: req.Highlights,
	}

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		if req.Pinned != nil && *req.Pinned {
			pin, err := ordering.ApplyPinTx(tx, userID, ordering.KindProject, project.ID, true, req.PinOrder)
			if err != nil {
				return err
			}
			project.IsPinned = pin.IsPinned
			project.PinOrder = pin.PinOrder
		}
		return nil
	})
	if err != nil {
		h.replyPinError(c, err, "failed to create project")
		return
	}

	c.JSON(http.StatusCreated, project)
}

// UpdateProject 更新项目字段，置顶迁移与字段更新在同一事务内提交：
// 顺序冲突会使整个更新回滚，不会出现字段改了而置顶没改的中间态。
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid project id")
		return
	}

	ctx := c.Request.Context()
	var project database.Project
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&project).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"title":      req.Title,
			"summary":    req.Summary,
			"repo_url":   req.RepoURL,
			"demo_url":   req.DemoURL,
			"highlights": req.Highlights,
		}
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return err
		}

		if req.Pinned != nil {
			pin, err := ordering.ApplyPinTx(tx, userID, ordering.KindProject, project.ID, *req.Pinned, req.PinOrder)
			if err != nil {
				return err
			}
			project.IsPinned = pin.IsPinned
			project.PinOrder = pin.PinOrder
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "project not found")
			return
		}
		h.replyPinError(c, err, "failed to update project")
		return
	}

	c.JSON(http.StatusOK, project)
}

// UpdatePin 只迁移置顶状态，不触碰其他字段。
func (h *ProjectHandler) UpdatePin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid project id")
		return
	}

	pin, err := h.pins.AssignOrUpdatePin(c.Request.Context(), userID, ordering.KindProject, id, req.Pinned, req.PinOrder)
	if err != nil {
		h.replyPinError(c, err, "failed to update pin state")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        pin.ID,
		"pinned":    pin.IsPinned,
		"pin_order": pin.PinOrder,
	})
}

// NextPinOrder 返回建议的下一个置顶顺序，供前端预填。
func (h *ProjectHandler) NextPinOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	order, err := h.pins.NextOrder(c.Request.Context(), userID, ordering.KindProject)
	if err != nil {
		Internal(c, "failed to compute next pin order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"next_order": order})
}

// SyncTechnologies 把项目技术栈同步为提交的名字集合。
func (h *ProjectHandler) SyncTechnologies(c *gin.Context) {
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

	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid project id")
		return
	}

	technologies, err := h.syncer.SyncProjectTechnologies(c.Request.Context(), userID, id, req.Names)
	if err != nil {
		if errors.Is(err, relation.ErrNotFound) {
			NotFound(c, "project not found")
			return
		}
		middleware.LoggerFromContext(c).Error("sync technologies failed", slog.Any("error", err))
		Internal(c, "failed to sync technologies")
		return
	}

	c.JSON(http.StatusOK, technologies)
}

// ListProjects 返回用户全部项目，置顶在前、按置顶顺序升序。
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var projects []database.Project
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Technologies").
		Where("user_id = ?", userID).
		Order("is_pinned DESC, pin_order ASC, created_at DESC").
		Find(&projects).Error; err != nil {
		Internal(c, "failed to list projects")
		return
	}

	c.JSON(http.StatusOK, projects)
}

// GetProject 返回指定项目。
func (h *ProjectHandler) GetProject(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid project id")
		return
	}

	var project database.Project
	err = h.db.WithContext(c.Request.Context()).
		Preload("Technologies").
		Where("id = ? AND user_id = ?", id, userID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "project not found")
			return
		}
		Internal(c, "failed to query project")
		return
	}

	c.JSON(http.StatusOK, project)
}

// DeleteProject 删除指定项目。
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid project id")
		return
	}

	ctx := c.Request.Context()
	var project database.Project
	if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "project not found")
			return
		}
		Internal(c, "failed to query project")
		return
	}

	// 软删除前清空置顶列并断开技术栈关联，避免残留的 pin_order 占用唯一索引。
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&project).
			Updates(map[string]any{"is_pinned": false, "pin_order": nil}).Error; err != nil {
			return err
		}
		if err := tx.Model(&project).Association("Technologies").Clear(); err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		Internal(c, "failed to delete project")
		return
	}

	c.Status(http.StatusNoContent)
}

// replyPinError 把排序引擎的错误翻译成 HTTP 响应。
func (h *ProjectHandler) replyPinError(c *gin.Context, err error, fallback string) {
	var conflict *ordering.ConflictError
	switch {
	case errors.As(err, &conflict):
		Conflict(c, conflict.Error())
	case errors.Is(err, ordering.ErrNotFound):
		NotFound(c, "record not found")
	default:
		middleware.LoggerFromContext(c).Error(fallback, slog.Any("error", err))
		Internal(c, fallback)
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

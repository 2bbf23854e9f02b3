package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"devfolio/internal/api/middleware"
	"devfolio/internal/database"
	"devfolio/internal/ordering"
)

// CertificationHandler 负责证书的增删改查与置顶。
type CertificationHandler struct {
	db   *gorm.DB
	pins *ordering.Service
}

// NewCertificationHandler 构造 CertificationHandler。
func NewCertificationHandler(db *gorm.DB, pins *ordering.Service) *CertificationHandler {
	return &CertificationHandler{db: db, pins: pins}
}

type certificationRequest struct {
	Name          string `json:"name" binding:"required,max=255"`
	Issuer        string `json:"issuer" binding:"max=255"`
	CredentialURL string `json:"credential_url" binding:"max=512"`
	IssuedYear    int    `json:"issued_year"`
	Pinned        *bool  `json:"pinned"`
	PinOrder      *int   `json:"pin_order"`
}

// CreateCertification 创建证书；请求可同时要求置顶。
func (h *CertificationHandler) CreateCertification(c *gin.Context) {
	var req certificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	cert := database.Certification{
		UserID:        userID,
		Name:          req.Name,
		Issuer:        req.Issuer,
		CredentialURL: req.CredentialURL,
		IssuedYear:    req.IssuedYear,
	}

	ctx := c.Request.Context()
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cert).Error; err != nil {
			return err
		}
		if req.Pinned != nil && *req.Pinned {
			pin, err := ordering.ApplyPinTx(tx, userID, ordering.KindCertification, cert.ID, true, req.PinOrder)
			if err != nil {
				return err
			}
			cert.IsPinned = pin.IsPinned
			cert.PinOrder = pin.PinOrder
		}
		return nil
	})
	if err != nil {
		h.replyError(c, err, "failed to create certification")
		return
	}

	c.JSON(http.StatusCreated, cert)
}

// UpdateCertification 更新证书字段，置顶迁移在同一事务内提交。
func (h *CertificationHandler) UpdateCertification(c *gin.Context) {
	var req certificationRequest
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
		BadRequest(c, "invalid certification id")
		return
	}

	ctx := c.Request.Context()
	var cert database.Certification
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&cert).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"name":           req.Name,
			"issuer":         req.Issuer,
			"credential_url": req.CredentialURL,
			"issued_year":    req.IssuedYear,
		}
		if err := tx.Model(&cert).Updates(updates).Error; err != nil {
			return err
		}

		if req.Pinned != nil {
			pin, err := ordering.ApplyPinTx(tx, userID, ordering.KindCertification, cert.ID, *req.Pinned, req.PinOrder)
			if err != nil {
				return err
			}
			cert.IsPinned = pin.IsPinned
			cert.PinOrder = pin.PinOrder
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "certification not found")
			return
		}
		h.replyError(c, err, "failed to update certification")
		return
	}

	c.JSON(http.StatusOK, cert)
}

// UpdatePin 只迁移置顶状态。
func (h *CertificationHandler) UpdatePin(c *gin.Context) {
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
		BadRequest(c, "invalid certification id")
		return
	}

	pin, err := h.pins.AssignOrUpdatePin(c.Request.Context(), userID, ordering.KindCertification, id, req.Pinned, req.PinOrder)
	if err != nil {
		h.replyError(c, err, "failed to update pin state")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        pin.ID,
		"pinned":    pin.IsPinned,
		"pin_order": pin.PinOrder,
	})
}

// NextPinOrder 返回建议的下一个置顶顺序。
func (h *CertificationHandler) NextPinOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	order, err := h.pins.NextOrder(c.Request.Context(), userID, ordering.KindCertification)
	if err != nil {
		Internal(c, "failed to compute next pin order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"next_order": order})
}

// ListCertifications 返回用户全部证书，置顶在前。
func (h *CertificationHandler) ListCertifications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var certs []database.Certification
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("is_pinned DESC, pin_order ASC, created_at DESC").
		Find(&certs).Error; err != nil {
		Internal(c, "failed to list certifications")
		return
	}

	c.JSON(http.StatusOK, certs)
}

// DeleteCertification 删除指定证书。
func (h *CertificationHandler) DeleteCertification(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid certification id")
		return
	}

	// 软删除前清空置顶列，避免残留的 pin_order 继续占用唯一索引。
	ctx := c.Request.Context()
	var deleted int64
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Certification{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(map[string]any{"is_pinned": false, "pin_order": nil}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&database.Certification{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		Internal(c, "failed to delete certification")
		return
	}
	if deleted == 0 {
		NotFound(c, "certification not found")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *CertificationHandler) replyError(c *gin.Context, err error, fallback string) {
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

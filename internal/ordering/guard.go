package ordering

import (
	"fmt"

	"gorm.io/gorm"

	"devfolio/internal/metrics"
)

// ReserveTx 检查目标顺序在同用户同类型的置顶集合内是否空闲。
// excludeID 为当前正在更新的记录，自身占用的顺序不算冲突。
// 本身不产生写入，仅作为置顶提交前的前置校验。
func ReserveTx(tx *gorm.DB, ownerID uint, kind Kind, order int, excludeID uint) error {
	if order < 1 {
		return fmt.Errorf("pin order must be positive, got %d", order)
	}

	model, err := kind.model()
	if err != nil {
		return err
	}

	var count int64
	err = tx.Model(model).
		Where("user_id = ? AND pin_order = ? AND id <> ?", ownerID, order, excludeID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check pin order occupancy: %w", err)
	}

	if count > 0 {
		metrics.PinConflicts.WithLabelValues(string(kind)).Inc()
		return &ConflictError{Kind: kind, Order: order}
	}
	return nil
}

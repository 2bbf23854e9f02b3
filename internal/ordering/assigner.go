package ordering

import (
	"fmt"

	"gorm.io/gorm"
)

// NextOrderTx 计算下一个可用的置顶顺序：当前已置顶集合的 MAX(pin_order)+1，
// 集合为空时返回 1。结果由当前数据即时推导，必须与后续写入处于同一事务中，
// 否则读到的最大值可能已经过期。
func NextOrderTx(tx *gorm.DB, ownerID uint, kind Kind) (int, error) {
	model, err := kind.model()
	if err != nil {
		return 0, err
	}

	var maxOrder int
	err = tx.Model(model).
		Where("user_id = ? AND pin_order IS NOT NULL", ownerID).
		Select("COALESCE(MAX(pin_order), 0)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, fmt.Errorf("query max pin order: %w", err)
	}

	return maxOrder + 1, nil
}

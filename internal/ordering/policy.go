package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"devfolio/internal/metrics"
)

// Service 实现置顶状态机：Unpinned/Pinned 两态，以及两态之间由
// (wantPinned, explicitOrder) 驱动的迁移。所有读取与写入在一个事务内完成。
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewService 构造置顶服务。
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// 自动分配顺序时，并发请求可能在提交前读到同一个 MAX(pin_order)，
// 由唯一约束在提交时拦下。此时重算重试，而不是把约束错误抛给调用方。
const assignRetries = 3

// AssignOrUpdatePin 对指定记录应用一次置顶迁移并提交。
//
//   - 取消置顶：清空 pin_order，忽略一同提交的 explicitOrder。
//   - 置顶且给定 explicitOrder：顺序被占用时返回 ConflictError，整个更新作废。
//   - 置顶且未给定顺序：取当前集合的 MAX+1。
//   - 已置顶且未给定顺序：保持原顺序不变。
func (s *Service) AssignOrUpdatePin(ctx context.Context, ownerID uint, kind Kind, id uint, wantPinned bool, explicitOrder *int) (Pin, error) {
	if !kind.Valid() {
		return Pin{}, fmt.Errorf("unknown pinnable kind %q", kind)
	}

	var result Pin

	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			pin, err := ApplyPinTx(tx, ownerID, kind, id, wantPinned, explicitOrder)
			if err != nil {
				return err
			}
			result = pin
			return nil
		})
		if err == nil {
			return result, nil
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if explicitOrder != nil {
				// 显式顺序在提交途中被并发请求抢占：按冲突上报，不重试。
				metrics.PinConflicts.WithLabelValues(string(kind)).Inc()
				return Pin{}, &ConflictError{Kind: kind, Order: *explicitOrder}
			}
			if wantPinned && attempt < assignRetries {
				s.logger.Warn("pin order race, recomputing",
					slog.Uint64("owner_id", uint64(ownerID)),
					slog.String("kind", string(kind)),
					slog.Int("attempt", attempt+1),
				)
				continue
			}
		}
		return Pin{}, err
	}
}

// NextOrder 返回建议的下一个置顶顺序，供前端预填展示。
// 展示值不参与提交，真正分配时会在事务内重新计算。
func (s *Service) NextOrder(ctx context.Context, ownerID uint, kind Kind) (int, error) {
	return NextOrderTx(s.db.WithContext(ctx), ownerID, kind)
}

// ApplyPinTx 在调用方的事务内应用置顶迁移，供需要把迁移与其他字段更新
// 合并为一次提交的调用方使用。校验失败时整个事务回滚，不会留下半更新状态。
func ApplyPinTx(tx *gorm.DB, ownerID uint, kind Kind, id uint, wantPinned bool, explicitOrder *int) (Pin, error) {
	model, err := kind.model()
	if err != nil {
		return Pin{}, err
	}

	var current Pin
	err = tx.Model(model).
		Select("id", "user_id", "is_pinned", "pin_order").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Pin{}, ErrNotFound
	}
	if err != nil {
		return Pin{}, fmt.Errorf("load pinnable: %w", err)
	}

	switch {
	case !wantPinned && !current.IsPinned:
		// no-op
		return current, nil

	case !wantPinned:
		return updatePinTx(tx, model, current, false, nil)

	case !current.IsPinned:
		order := 0
		if explicitOrder != nil {
			if err := ReserveTx(tx, ownerID, kind, *explicitOrder, id); err != nil {
				return Pin{}, err
			}
			order = *explicitOrder
		} else {
			order, err = NextOrderTx(tx, ownerID, kind)
			if err != nil {
				return Pin{}, err
			}
		}
		return updatePinTx(tx, model, current, true, &order)

	default:
		// Pinned -> Pinned：仅当显式给出且不同于当前顺序时才变更。
		if explicitOrder == nil || current.PinOrder != nil && *explicitOrder == *current.PinOrder {
			return current, nil
		}
		if err := ReserveTx(tx, ownerID, kind, *explicitOrder, id); err != nil {
			return Pin{}, err
		}
		order := *explicitOrder
		return updatePinTx(tx, model, current, true, &order)
	}
}

func updatePinTx(tx *gorm.DB, model any, current Pin, pinned bool, order *int) (Pin, error) {
	updates := map[string]any{
		"is_pinned": pinned,
		"pin_order": order,
	}
	if order != nil {
		updates["pin_order"] = *order
	}

	err := tx.Model(model).
		Where("id = ?", current.ID).
		Updates(updates).Error
	if err != nil {
		return Pin{}, fmt.Errorf("update pin state: %w", err)
	}

	current.IsPinned = pinned
	current.PinOrder = order
	return current, nil
}

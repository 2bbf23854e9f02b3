// Package relation 负责把用户/项目与共享参照实体之间的多对多关联
// 同步为与最新提交集合完全一致：缺的补上，多余的移除。
// 自由文本实体（标签、自定义技术）按名字 find-or-create，从不删除。
package relation

import (
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"
)

// ErrUnknownReference 表示按 id 同步时，提交集合包含目录中不存在的条目。
// 校验发生在任何写入之前。
var ErrUnknownReference = errors.New("unknown reference entity")

// ErrNotFound 表示作用域实体（如项目）不存在或不属于给定用户。
var ErrNotFound = errors.New("record not found")

// Syncer 执行基于差集的关联同步。每次调用在一个事务内完成读取、求差与写入。
type Syncer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSyncer 构造关联同步器。
func NewSyncer(db *gorm.DB, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, logger: logger}
}

// NormalizeNames 去掉名字两端空白并剔除空串与重复项，保持首次出现的顺序。
// 匹配保持大小写敏感："Go" 与 "go" 是两个不同的实体。
func NormalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// dedupeIDs 剔除重复 id，保持首次出现的顺序。
func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// idSet 把 id 列表转成集合，便于求差。
func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

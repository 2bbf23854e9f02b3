package relation

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"devfolio/internal/database"
)

// SyncLanguages 把用户关联的编程语言同步为恰好 ids 指定的集合。
// ids 中的每个条目都必须已存在于目录中，否则在写入前返回 ErrUnknownReference。
// 重复提交同一集合不产生任何变化（幂等）。
func (s *Syncer) SyncLanguages(ctx context.Context, ownerID uint, ids []uint) error {
	want := dedupeIDs(ids)
	return s.transact(ctx, ownerID, "languages", func(tx *gorm.DB, owner *database.User) error {
		var catalog []database.ProgrammingLanguage
		if len(want) > 0 {
			if err := tx.Find(&catalog, want).Error; err != nil {
				return fmt.Errorf("load languages: %w", err)
			}
			if len(catalog) != len(want) {
				return fmt.Errorf("%w: languages %v", ErrUnknownReference, missingIDs(want, languageIDs(catalog)))
			}
		}

		var current []database.ProgrammingLanguage
		if err := tx.Model(owner).Association("Languages").Find(&current); err != nil {
			return fmt.Errorf("load current languages: %w", err)
		}

		wantSet := idSet(want)
		currentSet := idSet(languageIDs(current))

		var remove []database.ProgrammingLanguage
		for _, row := range current {
			if _, ok := wantSet[row.ID]; !ok {
				remove = append(remove, row)
			}
		}
		var add []database.ProgrammingLanguage
		for _, row := range catalog {
			if _, ok := currentSet[row.ID]; !ok {
				add = append(add, row)
			}
		}

		if len(remove) > 0 {
			if err := tx.Model(owner).Association("Languages").Delete(&remove); err != nil {
				return fmt.Errorf("remove languages: %w", err)
			}
		}
		if len(add) > 0 {
			if err := tx.Model(owner).Association("Languages").Append(&add); err != nil {
				return fmt.Errorf("add languages: %w", err)
			}
		}
		return nil
	})
}

// SyncFrameworks 把用户关联的框架同步为恰好 ids 指定的集合。
func (s *Syncer) SyncFrameworks(ctx context.Context, ownerID uint, ids []uint) error {
	want := dedupeIDs(ids)
	return s.transact(ctx, ownerID, "frameworks", func(tx *gorm.DB, owner *database.User) error {
		var catalog []database.Framework
		if len(want) > 0 {
			if err := tx.Find(&catalog, want).Error; err != nil {
				return fmt.Errorf("load frameworks: %w", err)
			}
			if len(catalog) != len(want) {
				return fmt.Errorf("%w: frameworks %v", ErrUnknownReference, missingIDs(want, frameworkIDs(catalog)))
			}
		}

		var current []database.Framework
		if err := tx.Model(owner).Association("Frameworks").Find(&current); err != nil {
			return fmt.Errorf("load current frameworks: %w", err)
		}

		wantSet := idSet(want)
		currentSet := idSet(frameworkIDs(current))

		var remove []database.Framework
		for _, row := range current {
			if _, ok := wantSet[row.ID]; !ok {
				remove = append(remove, row)
			}
		}
		var add []database.Framework
		for _, row := range catalog {
			if _, ok := currentSet[row.ID]; !ok {
				add = append(add, row)
			}
		}

		if len(remove) > 0 {
			if err := tx.Model(owner).Association("Frameworks").Delete(&remove); err != nil {
				return fmt.Errorf("remove frameworks: %w", err)
			}
		}
		if len(add) > 0 {
			if err := tx.Model(owner).Association("Frameworks").Append(&add); err != nil {
				return fmt.Errorf("add frameworks: %w", err)
			}
		}
		return nil
	})
}

// SyncDatabases 把用户关联的数据库产品同步为恰好 ids 指定的集合。
func (s *Syncer) SyncDatabases(ctx context.Context, ownerID uint, ids []uint) error {
	want := dedupeIDs(ids)
	return s.transact(ctx, ownerID, "databases", func(tx *gorm.DB, owner *database.User) error {
		var catalog []database.DatabaseEngine
		if len(want) > 0 {
			if err := tx.Find(&catalog, want).Error; err != nil {
				return fmt.Errorf("load databases: %w", err)
			}
			if len(catalog) != len(want) {
				return fmt.Errorf("%w: databases %v", ErrUnknownReference, missingIDs(want, engineIDs(catalog)))
			}
		}

		var current []database.DatabaseEngine
		if err := tx.Model(owner).Association("Databases").Find(&current); err != nil {
			return fmt.Errorf("load current databases: %w", err)
		}

		wantSet := idSet(want)
		currentSet := idSet(engineIDs(current))

		var remove []database.DatabaseEngine
		for _, row := range current {
			if _, ok := wantSet[row.ID]; !ok {
				remove = append(remove, row)
			}
		}
		var add []database.DatabaseEngine
		for _, row := range catalog {
			if _, ok := currentSet[row.ID]; !ok {
				add = append(add, row)
			}
		}

		if len(remove) > 0 {
			if err := tx.Model(owner).Association("Databases").Delete(&remove); err != nil {
				return fmt.Errorf("remove databases: %w", err)
			}
		}
		if len(add) > 0 {
			if err := tx.Model(owner).Association("Databases").Append(&add); err != nil {
				return fmt.Errorf("add databases: %w", err)
			}
		}
		return nil
	})
}

// transact 在一个事务内执行同步逻辑，并统一记录调试日志。
func (s *Syncer) transact(ctx context.Context, ownerID uint, relation string, fn func(tx *gorm.DB, owner *database.User) error) error {
	owner := database.User{Model: gorm.Model{ID: ownerID}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, &owner)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("relation synced",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.String("relation", relation),
	)
	return nil
}

func languageIDs(rows []database.ProgrammingLanguage) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func frameworkIDs(rows []database.Framework) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func engineIDs(rows []database.DatabaseEngine) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// missingIDs 列出提交集合中不在目录里的 id，用于错误信息。
func missingIDs(want []uint, have []uint) []uint {
	haveSet := idSet(have)
	var missing []uint
	for _, id := range want {
		if _, ok := haveSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

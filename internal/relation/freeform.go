package relation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"devfolio/internal/database"
	"devfolio/internal/metrics"
)

// SyncTags 把用户关联的标签同步为恰好 names 指定的集合。
// 未知名字会先被 intern（按唯一 name 索引 insert-if-absent 再回读），
// 因此并发提交同一个新名字也不会产生重复的 Tag 行。
// Tag 行只增不删：移除的只是关联。
func (s *Syncer) SyncTags(ctx context.Context, ownerID uint, names []string) ([]database.Tag, error) {
	want := NormalizeNames(names)

	var resolved []database.Tag
	err := s.transact(ctx, ownerID, "tags", func(tx *gorm.DB, owner *database.User) error {
		resolved = resolved[:0]

		if len(want) > 0 {
			rows := make([]database.Tag, 0, len(want))
			for _, name := range want {
				rows = append(rows, database.Tag{Name: name})
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&rows)
			if res.Error != nil {
				return fmt.Errorf("intern tags: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				metrics.InternedNames.WithLabelValues("tags").Add(float64(res.RowsAffected))
			}

			// 冲突条目不会回填 id，统一按名字回读解析后的集合。
			if err := tx.Where("name IN ?", want).Find(&resolved).Error; err != nil {
				return fmt.Errorf("resolve tags: %w", err)
			}
		}

		var current []database.Tag
		if err := tx.Model(owner).Association("Tags").Find(&current); err != nil {
			return fmt.Errorf("load current tags: %w", err)
		}

		resolvedSet := idSet(tagIDs(resolved))
		currentSet := idSet(tagIDs(current))

		var remove []database.Tag
		for _, row := range current {
			if _, ok := resolvedSet[row.ID]; !ok {
				remove = append(remove, row)
			}
		}
		var add []database.Tag
		for _, row := range resolved {
			if _, ok := currentSet[row.ID]; !ok {
				add = append(add, row)
			}
		}

		if len(remove) > 0 {
			if err := tx.Model(owner).Association("Tags").Delete(&remove); err != nil {
				return fmt.Errorf("remove tags: %w", err)
			}
		}
		if len(add) > 0 {
			if err := tx.Model(owner).Association("Tags").Append(&add); err != nil {
				return fmt.Errorf("add tags: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// SyncProjectTechnologies 把项目关联的技术栈同步为恰好 names 指定的集合。
// 先校验项目归属：项目不存在或不属于 ownerID 时返回 ErrNotFound，不产生写入。
func (s *Syncer) SyncProjectTechnologies(ctx context.Context, ownerID, projectID uint, names []string) ([]database.Technology, error) {
	want := NormalizeNames(names)

	var resolved []database.Technology
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved = resolved[:0]

		var project database.Project
		err := tx.Select("id", "user_id").
			Where("id = ? AND user_id = ?", projectID, ownerID).
			First(&project).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}

		if len(want) > 0 {
			rows := make([]database.Technology, 0, len(want))
			for _, name := range want {
				rows = append(rows, database.Technology{Name: name})
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&rows)
			if res.Error != nil {
				return fmt.Errorf("intern technologies: %w", res.Error)
			}
			if res.RowsAffected > 0 {
				metrics.InternedNames.WithLabelValues("technologies").Add(float64(res.RowsAffected))
			}

			if err := tx.Where("name IN ?", want).Find(&resolved).Error; err != nil {
				return fmt.Errorf("resolve technologies: %w", err)
			}
		}

		var current []database.Technology
		if err := tx.Model(&project).Association("Technologies").Find(&current); err != nil {
			return fmt.Errorf("load current technologies: %w", err)
		}

		resolvedSet := idSet(technologyIDs(resolved))
		currentSet := idSet(technologyIDs(current))

		var remove []database.Technology
		for _, row := range current {
			if _, ok := resolvedSet[row.ID]; !ok {
				remove = append(remove, row)
			}
		}
		var add []database.Technology
		for _, row := range resolved {
			if _, ok := currentSet[row.ID]; !ok {
				add = append(add, row)
			}
		}

		if len(remove) > 0 {
			if err := tx.Model(&project).Association("Technologies").Delete(&remove); err != nil {
				return fmt.Errorf("remove technologies: %w", err)
			}
		}
		if len(add) > 0 {
			if err := tx.Model(&project).Association("Technologies").Append(&add); err != nil {
				return fmt.Errorf("add technologies: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func tagIDs(rows []database.Tag) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func technologyIDs(rows []database.Technology) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

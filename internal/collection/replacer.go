// Package collection 以"整体替换"的方式维护用户的有序子集合
// （教育经历、工作经历、技能）：每次提交的列表就是该集合的全量内容，
// sort_order 固定为条目在提交列表中的下标。
package collection

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"devfolio/internal/database"
	"devfolio/internal/metrics"
)

// Category 标识一类有序子集合，用于日志与指标。
type Category string

const (
	CategoryEducation  Category = "education"
	CategoryExperience Category = "experience"
	CategorySkill      Category = "skill"
)

// Replacer 执行原子的 delete-then-insert 替换。
// 同一列表重复提交会得到相同的行集，但行 id 会变化：
// 替换不是 upsert，调用方不得依赖跨替换的稳定 id。
type Replacer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewReplacer 构造集合替换器。
func NewReplacer(db *gorm.DB, logger *slog.Logger) *Replacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replacer{db: db, logger: logger}
}

// EducationSpec 为一条待写入的教育经历。
type EducationSpec struct {
	School      string
	Degree      string
	Field       string
	StartYear   int
	EndYear     int
	Description string
}

// ExperienceSpec 为一条待写入的工作经历。
type ExperienceSpec struct {
	Company     string
	Title       string
	Location    string
	StartDate   string
	EndDate     string
	Description string
}

// SkillSpec 为一条待写入的技能。
type SkillSpec struct {
	Name  string
	Level string
}

// ReplaceEducation 用提交列表整体替换用户的教育经历。
// 删除与插入在同一事务内提交：任一插入失败则回滚，原有行原样保留。
// 空列表是合法输入，效果为清空该集合。
func (r *Replacer) ReplaceEducation(ctx context.Context, ownerID uint, specs []EducationSpec) ([]database.Education, error) {
	rows := make([]database.Education, 0, len(specs))
	for i, spec := range specs {
		rows = append(rows, database.Education{
			UserID:      ownerID,
			School:      spec.School,
			Degree:      spec.Degree,
			Field:       spec.Field,
			StartYear:   spec.StartYear,
			EndYear:     spec.EndYear,
			Description: spec.Description,
			SortOrder:   i,
		})
	}

	err := r.replace(ctx, ownerID, CategoryEducation, &database.Education{}, func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceExperience 用提交列表整体替换用户的工作经历。
func (r *Replacer) ReplaceExperience(ctx context.Context, ownerID uint, specs []ExperienceSpec) ([]database.Experience, error) {
	rows := make([]database.Experience, 0, len(specs))
	for i, spec := range specs {
		rows = append(rows, database.Experience{
			UserID:      ownerID,
			Company:     spec.Company,
			Title:       spec.Title,
			Location:    spec.Location,
			StartDate:   spec.StartDate,
			EndDate:     spec.EndDate,
			Description: spec.Description,
			SortOrder:   i,
		})
	}

	err := r.replace(ctx, ownerID, CategoryExperience, &database.Experience{}, func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceSkills 用提交列表整体替换用户的技能。
func (r *Replacer) ReplaceSkills(ctx context.Context, ownerID uint, specs []SkillSpec) ([]database.Skill, error) {
	rows := make([]database.Skill, 0, len(specs))
	for i, spec := range specs {
		rows = append(rows, database.Skill{
			UserID:    ownerID,
			Name:      spec.Name,
			Level:     spec.Level,
			SortOrder: i,
		})
	}

	err := r.replace(ctx, ownerID, CategorySkill, &database.Skill{}, func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// replace 在一个事务内先硬删除该用户该类别的全部行，再执行插入。
// 硬删除（Unscoped）保证行集恰好等于最近一次提交，不会积累软删除残留。
func (r *Replacer) replace(ctx context.Context, ownerID uint, category Category, model any, insert func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", ownerID).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %s rows: %w", category, err)
		}
		if err := insert(tx); err != nil {
			return fmt.Errorf("insert %s rows: %w", category, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.CollectionReplacements.WithLabelValues(string(category)).Inc()
	r.logger.Debug("collection replaced",
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.String("category", string(category)),
	)
	return nil
}

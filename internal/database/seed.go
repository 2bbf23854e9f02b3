package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 预置目录的初始内容。目录条目只增不删，按 name 去重。
var (
	seedLanguages  = []string{"Go", "Python", "JavaScript", "TypeScript", "Java", "C++", "Rust", "SQL"}
	seedFrameworks = []string{"Gin", "Echo", "React", "Vue", "Django", "Spring", "Rails"}
	seedDatabases  = []string{"PostgreSQL", "MySQL", "SQLite", "Redis", "MongoDB"}
)

// SeedCatalogs 写入预置的语言/框架/数据库目录，已存在的条目保持不变。
func SeedCatalogs(db *gorm.DB) error {
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}

	languages := make([]ProgrammingLanguage, 0, len(seedLanguages))
	for _, name := range seedLanguages {
		languages = append(languages, ProgrammingLanguage{Name: name})
	}
	if err := db.Clauses(onConflict).Create(&languages).Error; err != nil {
		return fmt.Errorf("seed languages: %w", err)
	}

	frameworks := make([]Framework, 0, len(seedFrameworks))
	for _, name := range seedFrameworks {
		frameworks = append(frameworks, Framework{Name: name})
	}
	if err := db.Clauses(onConflict).Create(&frameworks).Error; err != nil {
		return fmt.Errorf("seed frameworks: %w", err)
	}

	engines := make([]DatabaseEngine, 0, len(seedDatabases))
	for _, name := range seedDatabases {
		engines = append(engines, DatabaseEngine{Name: name})
	}
	if err := db.Clauses(onConflict).Create(&engines).Error; err != nil {
		return fmt.Errorf("seed databases: %w", err)
	}

	return nil
}

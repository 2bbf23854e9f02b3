package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号，同时也是所有排序/关联不变量的 owner 作用域。
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string `gorm:"size:255"`
	DisplayName  string `gorm:"size:128"`
	Headline     string `gorm:"size:255"`

	Projects       []Project       `gorm:"constraint:OnDelete:CASCADE"`
	Certifications []Certification `gorm:"constraint:OnDelete:CASCADE"`
	Educations     []Education     `gorm:"constraint:OnDelete:CASCADE"`
	Experiences    []Experience    `gorm:"constraint:OnDelete:CASCADE"`
	Skills         []Skill         `gorm:"constraint:OnDelete:CASCADE"`

	Languages  []ProgrammingLanguage `gorm:"many2many:user_languages"`
	Frameworks []Framework           `gorm:"many2many:user_frameworks"`
	Databases  []DatabaseEngine      `gorm:"many2many:user_databases"`
	Tags       []Tag                 `gorm:"many2many:user_tags"`
}

// Project 表示用户的作品项目，可被置顶（pin）展示。
// (user_id, pin_order) 复合唯一索引保证同一用户的置顶顺序互不重复；
// 未置顶时 PinOrder 为 NULL，NULL 之间不冲突。
type Project struct {
	gorm.Model
	UserID       uint           `gorm:"index;uniqueIndex:uniq_project_pin,priority:1"`
	Title        string         `gorm:"size:255"`
	Summary      string         `gorm:"type:text"`
	RepoURL      string         `gorm:"size:512"`
	DemoURL      string         `gorm:"size:512"`
	Highlights   datatypes.JSON `gorm:"type:jsonb"`
	IsPinned     bool           `gorm:"default:false"`
	PinOrder     *int           `gorm:"uniqueIndex:uniq_project_pin,priority:2"`
	Technologies []Technology   `gorm:"many2many:project_technologies"`
}

// Certification 表示用户的认证/证书，同样支持置顶。
type Certification struct {
	gorm.Model
	UserID        uint   `gorm:"index;uniqueIndex:uniq_certification_pin,priority:1"`
	Name          string `gorm:"size:255"`
	Issuer        string `gorm:"size:255"`
	CredentialURL string `gorm:"size:512"`
	IssuedYear    int
	IsPinned      bool `gorm:"default:false"`
	PinOrder      *int `gorm:"uniqueIndex:uniq_certification_pin,priority:2"`
}

// Education 表示教育经历，SortOrder 为最近一次提交列表中的下标。
type Education struct {
	gorm.Model
	UserID      uint   `gorm:"index"`
	School      string `gorm:"size:255"`
	Degree      string `gorm:"size:128"`
	Field       string `gorm:"size:128"`
	StartYear   int
	EndYear     int
	Description string `gorm:"type:text"`
	SortOrder   int
}

// Experience 表示工作经历。
type Experience struct {
	gorm.Model
	UserID      uint   `gorm:"index"`
	Company     string `gorm:"size:255"`
	Title       string `gorm:"size:255"`
	Location    string `gorm:"size:128"`
	StartDate   string `gorm:"size:32"`
	EndDate     string `gorm:"size:32"`
	Description string `gorm:"type:text"`
	SortOrder   int
}

// Skill 表示技能条目。
type Skill struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	Name      string `gorm:"size:128"`
	Level     string `gorm:"size:32"`
	SortOrder int
}

// ProgrammingLanguage 为预置目录中的编程语言，按 id 关联。
type ProgrammingLanguage struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;size:128"`
}

// Framework 为预置目录中的框架。
type Framework struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;size:128"`
}

// DatabaseEngine 为预置目录中的数据库产品。
type DatabaseEngine struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;size:128"`
}

// Tag 为自由文本标签，首次使用时由同步器懒创建，之后全局共享。
type Tag struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;size:128"`
}

// Technology 为项目自定义技术栈条目，与 Tag 同为 find-or-create 语义。
type Technology struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;size:128"`
}

// Package ordering 维护用户置顶集合的顺序不变量：
// 同一用户、同一类型的置顶条目之间 pin_order 互不重复，且仅在置顶时非空。
package ordering

import (
	"fmt"

	"devfolio/internal/database"
)

// Kind 标识一类可置顶实体。
type Kind string

const (
	KindProject       Kind = "project"
	KindCertification Kind = "certification"
)

// model 返回该类型对应的 GORM 模型原型，用于构造作用于正确表的查询。
func (k Kind) model() (any, error) {
	switch k {
	case KindProject:
		return &database.Project{}, nil
	case KindCertification:
		return &database.Certification{}, nil
	default:
		return nil, fmt.Errorf("unknown pinnable kind %q", k)
	}
}

// Valid 报告 k 是否为已知类型。
func (k Kind) Valid() bool {
	_, err := k.model()
	return err == nil
}

// Pin 描述一条可置顶记录当前的置顶状态。
type Pin struct {
	ID       uint
	UserID   uint
	IsPinned bool
	PinOrder *int
}

package ordering

import (
	"errors"
	"fmt"
)

// ErrNotFound 表示目标记录不存在，或不属于给定用户。
var ErrNotFound = errors.New("pinnable not found")

// ConflictError 表示显式指定的置顶顺序已被同用户同类型的其他记录占用。
// 冲突只上报、不自动挪位：是否改用其他顺序由调用方决定。
type ConflictError struct {
	Kind  Kind
	Order int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pin order %d is already in use for %s", e.Order, e.Kind)
}

// IsConflict 判断 err 是否为置顶顺序冲突。
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

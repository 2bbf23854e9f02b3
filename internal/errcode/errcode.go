package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复类错误（资源缺失、顺序冲突、入参不合法）
// - 5xxx：系统错误（需要中断流程）
const (
	OK              = 0
	InvalidPayload  = 4000
	ResourceMissing = 4004
	Conflict        = 4009
	SystemError     = 5000
)

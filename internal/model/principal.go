package model

// Role 参与者角色
// 只有两种角色，引擎本身不区别对待，仅用于界面按角色筛选
type Role string

const (
	RoleTutor   Role = "tutor"   // 导师
	RoleStudent Role = "student" // 学员
)

// Valid 检查角色是否合法
func (r Role) Valid() bool {
	return r == RoleTutor || r == RoleStudent
}

// Principal 会话参与者
// 由身份服务提供，会话期内不可变
type Principal struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Role        Role   `json:"role"`
}

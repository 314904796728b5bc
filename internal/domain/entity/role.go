package entity

// Role represents a user role in the system
type Role struct {
	ID       int    `gorm:"primaryKey;autoIncrement" json:"id"`
	RoleName string `gorm:"type:varchar(50);uniqueIndex;not null" json:"role_name"`
}

func (Role) TableName() string {
	return "roles"
}

// Role IDs carried in access token claims
const (
	RoleIDAdmin   = 1
	RoleIDDoctor  = 2
	RoleIDPatient = 3
)

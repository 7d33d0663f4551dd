package model

import (
	"time"
)

// User 本地用户。匿名提交成功后会自动创建，用于挂载客户 ID 与卡
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Login        string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"login"`
	Email        string    `gorm:"type:varchar(128);index" json:"email"`
	FirstName    string    `gorm:"type:varchar(64)" json:"first_name"`
	LastName     string    `gorm:"type:varchar(64)" json:"last_name"`
	Role         string    `gorm:"type:varchar(32);not null" json:"role"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "app_user"
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FieldTypeProduct    = "product"
	FieldTypeShipping   = "shipping"
	FieldTypeDate       = "date"
	FieldTypeCreditCard = "creditcard"
)

// 日期字段的输入格式
const (
	DateFormatMDY = "mdy"
	DateFormatDMY = "dmy"
	DateFormatYMD = "ymd"
)

type FormField struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Label      string `json:"label"`
	DateFormat string `json:"date_format,omitempty"`
}

// Form 表单定义，只保留支付处理需要的字段信息
type Form struct {
	ID        int64                               `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string                              `gorm:"type:varchar(255);not null" json:"title"`
	Currency  string                              `gorm:"type:varchar(8);not null;default:USD" json:"currency"`
	Fields    datatypes.JSONType[[]FormField]     `json:"fields"`
	CreatedAt time.Time                           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Form) TableName() string {
	return "form"
}

func (f *Form) Field(id string) *FormField {
	for _, field := range f.Fields.Data() {
		if field.ID == id {
			fd := field
			return &fd
		}
	}
	return nil
}

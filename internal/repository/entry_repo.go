package repository

import (
	"context"
	"errors"

	"formpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrEntryNotFound = errors.New("提交记录不存在")
	ErrFormNotFound  = errors.New("表单不存在")
)

type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.Entry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// Get 按 ID 查询提交记录
func (r *EntryRepository) Get(ctx context.Context, id int64) (*model.Entry, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Update 整行保存
func (r *EntryRepository) Update(ctx context.Context, entry *model.Entry) error {
	return r.UpdateTx(ctx, nil, entry)
}

func (r *EntryRepository) UpdateTx(ctx context.Context, tx *gorm.DB, entry *model.Entry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Save(entry).Error
}

// UpdateFields 只更新指定列
func (r *EntryRepository) UpdateFields(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Entry{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ClearPaymentMode 卸载时清空所有提交记录的 payment_mode
func (r *EntryRepository) ClearPaymentMode(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Entry{}).
		Where("payment_mode <> ?", "").
		Update("payment_mode", "")
	return result.RowsAffected, result.Error
}

func (r *EntryRepository) AddNote(ctx context.Context, tx *gorm.DB, entryID int64, noteType, content string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(&model.EntryNote{
		EntryID:  entryID,
		NoteType: noteType,
		Content:  content,
	}).Error
}

func (r *EntryRepository) ListNotes(ctx context.Context, entryID int64) ([]*model.EntryNote, error) {
	var notes []*model.EntryNote
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("id ASC").
		Find(&notes).Error
	return notes, err
}

// ============================================================
// 表单
// ============================================================

type FormRepository struct {
	db *gorm.DB
}

func NewFormRepository(db *gorm.DB) *FormRepository {
	return &FormRepository{db: db}
}

func (r *FormRepository) Create(ctx context.Context, form *model.Form) error {
	return r.db.WithContext(ctx).Create(form).Error
}

func (r *FormRepository) GetByID(ctx context.Context, id int64) (*model.Form, error) {
	var form model.Form
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return &form, nil
}

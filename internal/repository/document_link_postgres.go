package repository

import (
	"context"

	"github.com/ironroggers/ops-tracker/internal/models"
	"gorm.io/gorm"
)

// postgresDocumentLinkRepository gorm实现
type postgresDocumentLinkRepository struct {
	db *gorm.DB
}

// NewPostgresDocumentLinkRepository 创建Postgres关联仓库
func NewPostgresDocumentLinkRepository(db *gorm.DB) DocumentLinkRepository {
	return &postgresDocumentLinkRepository{db: db}
}

// GetDB 获取数据库连接
func (r *postgresDocumentLinkRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *postgresDocumentLinkRepository) LinkedDocumentIDs(ctx context.Context, assetID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.DocumentLink{}).
		Distinct("link_id").
		Where("object_id = ? AND status = ? AND entity_type = ?", assetID, models.LinkStatusActive, models.LinkEntityEquipment).
		Pluck("link_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

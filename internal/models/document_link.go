package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 关联状态与实体类型
const (
	LinkStatusActive    = 1
	LinkEntityEquipment = "Equipment"
)

// DocumentLink 资产与知识库文档的关联（Postgres）
type DocumentLink struct {
	LinkID     string    `gorm:"primaryKey;column:link_id;size:64" json:"link_id"`
	ObjectID   string    `gorm:"column:object_id;size:64;index" json:"object_id"`
	Status     int       `gorm:"column:status;default:1" json:"status"`
	EntityType string    `gorm:"column:entity_type;size:50" json:"entity_type"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
}

func (DocumentLink) TableName() string {
	return "knowledge_repository_document_links"
}

// LinkedEntity 文档关联的实体
type LinkedEntity struct {
	EntityID   primitive.ObjectID `bson:"entityId,omitempty" json:"entity_id"`
	EntityType string             `bson:"entityType" json:"entity_type"`
}

// KnowledgeRepositoryDocumentLink Mongo中的关联文档，_id 即文档集合ID
type KnowledgeRepositoryDocumentLink struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ObjectIDs      []primitive.ObjectID `bson:"objectIds,omitempty" json:"object_ids"`
	Status         int                  `bson:"status" json:"status"`
	LinkedEntities []LinkedEntity       `bson:"linkedEntities,omitempty" json:"linked_entities"`
}

// DocumentLinkCollection Mongo集合名
const DocumentLinkCollection = "KnowledgeRepositoryDocumentLink"

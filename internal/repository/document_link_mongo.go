package repository

import (
	"context"
	"fmt"

	"github.com/ironroggers/ops-tracker/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocumentLinkRepository Mongo实现
type mongoDocumentLinkRepository struct {
	coll *mongo.Collection
}

// NewMongoDocumentLinkRepository 创建Mongo关联仓库
func NewMongoDocumentLinkRepository(db *mongo.Database) DocumentLinkRepository {
	return &mongoDocumentLinkRepository{coll: db.Collection(models.DocumentLinkCollection)}
}

func (r *mongoDocumentLinkRepository) LinkedDocumentIDs(ctx context.Context, assetID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(assetID)
	if err != nil {
		return nil, fmt.Errorf("invalid asset id %q: %w", assetID, err)
	}

	filter := bson.M{
		"objectIds":                 oid,
		"status":                    models.LinkStatusActive,
		"linkedEntities.entityType": models.LinkEntityEquipment,
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find document links: %w", err)
	}
	defer cursor.Close(ctx)

	var links []models.KnowledgeRepositoryDocumentLink
	if err := cursor.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("decode document links: %w", err)
	}

	ids := make([]string, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ID.Hex())
	}
	return ids, nil
}

package repository

import (
	"context"
)

// DocumentLinkRepository 资产-文档关联查询
type DocumentLinkRepository interface {
	// LinkedDocumentIDs 返回与资产关联的有效文档ID（status=1，实体类型 Equipment）
	LinkedDocumentIDs(ctx context.Context, assetID string) ([]string, error)
}

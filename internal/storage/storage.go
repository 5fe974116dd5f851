package storage

import "poolscope/internal/model"

// DepthSink receives computed depth snapshot rows.
type DepthSink interface {
	PutDepthBatch(rows []model.DepthSnapshot) error
}

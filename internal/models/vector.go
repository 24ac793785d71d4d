package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// VectorDocument mirrors an anonymized record into a semantic index
// collection. Embedding may be empty when the embeddings provider is not
// configured (zero-vector skip).
type VectorDocument struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Collection string         `gorm:"size:50;not null;uniqueIndex:idx_vector_docs_collection_source" json:"collection"`
	SourceID   string         `gorm:"size:64;not null;uniqueIndex:idx_vector_docs_collection_source" json:"source_id"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	Embedding  datatypes.JSON `json:"-"`
	Metadata   datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
}

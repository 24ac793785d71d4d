package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/velora-health/privacy-engine/internal/config"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Collections the pipelines mirror into.
const (
	CollectionTier2QA       = "tier2_qa"
	CollectionKnowledgeBase = "knowledge_base"
)

// Document is one anonymized record to mirror into a semantic index
// collection.
type Document struct {
	SourceID   string
	Collection string
	Content    string
	Metadata   map[string]string
}

// Indexer mirrors documents into a semantic index. Implementations are
// best-effort collaborators: callers log failures and move on.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
}

// --- OpenAI embeddings types (internal) ---

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Service embeds document content via the OpenAI embeddings API and persists
// the result. Without an API key it degrades to storing documents with no
// embedding (zero-vector skip) instead of failing.
type Service struct {
	db       *gorm.DB
	cfg      *config.Config
	client   *http.Client
	warnOnce sync.Once
}

func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.EmbeddingTimeout},
	}
}

func (s *Service) Index(ctx context.Context, doc Document) error {
	if doc.SourceID == "" || doc.Collection == "" {
		return errors.New("document requires source id and collection")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	row := models.VectorDocument{
		Collection: doc.Collection,
		SourceID:   doc.SourceID,
		Content:    doc.Content,
	}
	if embedding != nil {
		if b, err := json.Marshal(embedding); err == nil {
			row.Embedding = datatypes.JSON(b)
		}
	}
	if len(doc.Metadata) > 0 {
		if b, err := json.Marshal(doc.Metadata); err == nil {
			row.Metadata = datatypes.JSON(b)
		}
	}

	var existing models.VectorDocument
	err = s.db.Where("collection = ? AND source_id = ?", doc.Collection, doc.SourceID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(&row).Error; err != nil {
			return fmt.Errorf("create vector document: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup vector document: %w", err)
	}

	updates := map[string]interface{}{
		"content":   row.Content,
		"embedding": row.Embedding,
		"metadata":  row.Metadata,
	}
	if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("update vector document: %w", err)
	}
	return nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float64, error) {
	if s.cfg.OpenAIAPIKey == "" {
		s.warnOnce.Do(func() {
			slog.Warn("embeddings provider not configured, indexing without vectors")
		})
		return nil, nil
	}

	reqBody, err := json.Marshal(embeddingRequest{
		Model: s.cfg.OpenAIEmbeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.OpenAIAPIKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("embeddings API error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
	}

	var resp embeddingResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}

package services

import (
	"context"
	"encoding/json"
	"strings"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

// ChromaStore is a DocumentStore backed by a ChromaDB collection. The metadata
// filter is applied client-side after an over-fetch so both store backends
// share the same filtering semantics.
type ChromaStore struct {
	collection chromago.Collection
	embedder   Embedder
	names      []string
	logger     *zap.Logger
}

// NewChromaStore wraps an existing collection. The restaurant names are taken
// from the upstream data artifact because the collection has no cheap way to
// enumerate distinct metadata values.
func NewChromaStore(collection chromago.Collection, embedder Embedder, restaurantNames []string, logger *zap.Logger) *ChromaStore {
	return &ChromaStore{
		collection: collection,
		embedder:   embedder,
		names:      restaurantNames,
		logger:     logger,
	}
}

// RestaurantNames lists the restaurant names known to the store.
func (s *ChromaStore) RestaurantNames() []string {
	return s.names
}

// Ingest adds documents with precomputed embeddings to the collection.
func (s *ChromaStore) Ingest(ctx context.Context, docs []models.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return NewKnowledgeBaseError("documents and vectors length mismatch", nil)
	}

	for i, doc := range docs {
		attrs := []*chromago.MetaAttribute{
			chromago.NewStringAttribute("restaurant", doc.Restaurant()),
			chromago.NewStringAttribute("type", doc.DocType()),
		}
		if name, ok := doc.Metadata["item_name"].(string); ok {
			attrs = append(attrs, chromago.NewStringAttribute("item_name", name))
		}
		if price, ok := doc.Metadata["price"].(float64); ok {
			attrs = append(attrs, chromago.NewFloatAttribute("price", price))
		}

		err := s.collection.Add(ctx,
			chromago.WithIDs(chromago.DocumentID(uuid.New().String())),
			chromago.WithTexts(doc.Content),
			chromago.WithEmbeddings(embeddings.NewEmbeddingFromFloat32(vectors[i])),
			chromago.WithMetadatas(chromago.NewDocumentMetadata(attrs...)),
		)
		if err != nil {
			return NewKnowledgeBaseError("failed to add document to chromadb", err)
		}
	}

	s.logger.Info("documents ingested into chromadb", zap.Int("documents", len(docs)))
	return nil
}

// SimilaritySearch embeds the query, over-fetches 2*topK candidates from the
// collection, applies the metadata filter and truncates to topK. Scores use
// the same 1/(1+distance) formula as the flat index.
func (s *ChromaStore) SimilaritySearch(ctx context.Context, query string, topK int, filter map[string]string) ([]models.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		return []models.RetrievedDocument{}, nil
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewKnowledgeBaseError("failed to embed query", err)
	}

	results, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(queryVector)),
		chromago.WithNResults(2*topK),
	)
	if err != nil {
		return nil, NewKnowledgeBaseError("failed to query chromadb", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(documentGroups) == 0 {
		return []models.RetrievedDocument{}, nil
	}

	retrieved := make([]models.RetrievedDocument, 0, topK)
	for i, chromaDoc := range documentGroups[0] {
		content := chromaDoc.ContentString()
		if content == "" {
			continue
		}

		metadata := make(map[string]interface{})
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			// DocumentMetadata exposes no map accessor; round-trip through JSON.
			if jsonBytes, err := json.Marshal(metadataGroups[0][i]); err == nil {
				if err := json.Unmarshal(jsonBytes, &metadata); err != nil {
					s.logger.Warn("could not unmarshal chroma metadata", zap.Error(err))
					metadata = make(map[string]interface{})
				}
			}
		}

		doc := models.Document{Content: content, Metadata: metadata}
		if !matchesFilter(doc, filter) {
			continue
		}

		var distance float64
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			distance = float64(distanceGroups[0][i])
		}
		retrieved = append(retrieved, models.RetrievedDocument{
			Document: doc,
			Score:    1.0 / (1.0 + distance),
		})
		if len(retrieved) == topK {
			break
		}
	}

	s.logger.Debug("chroma similarity search complete",
		zap.String("query", query),
		zap.Int("results", len(retrieved)))
	return retrieved, nil
}

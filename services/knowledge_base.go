package services

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

// Artifact file names inside the knowledge-base directory. All four must be
// present and mutually consistent for Load to succeed.
const (
	documentsFile   = "documents.json"
	documentIDsFile = "document_ids.json"
	embeddingsFile  = "embeddings.gob"
	indexFile       = "index.gob"
)

// KnowledgeBase holds the retrievable restaurant documents together with their
// embedding matrix and a flat nearest-neighbor index. The index is read-mostly
// after load; Reload swaps the whole state under the write lock.
type KnowledgeBase struct {
	mu          sync.RWMutex
	embedder    Embedder
	documents   []models.Document
	documentIDs []int
	embeddings  [][]float32
	index       *FlatIndex
	logger      *zap.Logger
}

// NewKnowledgeBase creates an empty knowledge base using the given embedder.
func NewKnowledgeBase(embedder Embedder, logger *zap.Logger) *KnowledgeBase {
	return &KnowledgeBase{
		embedder: embedder,
		logger:   logger,
	}
}

// BuildFromRestaurants processes restaurant records into documents, embeds
// them and builds the index in memory. Call Save afterwards to persist.
func (kb *KnowledgeBase) BuildFromRestaurants(ctx context.Context, restaurants []models.Restaurant) error {
	documents := ProcessRestaurants(restaurants)
	if len(documents) == 0 {
		return NewKnowledgeBaseError("no documents produced from restaurant data", nil)
	}
	kb.logger.Info("processing restaurants into documents",
		zap.Int("restaurants", len(restaurants)),
		zap.Int("documents", len(documents)))

	texts := make([]string, len(documents))
	for i, doc := range documents {
		texts[i] = doc.Content
	}

	vectors, err := kb.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return NewKnowledgeBaseError("failed to create embeddings", err)
	}

	index, err := NewFlatIndex(len(vectors[0]))
	if err != nil {
		return NewKnowledgeBaseError("failed to create index", err)
	}
	if err := index.Add(vectors); err != nil {
		return NewKnowledgeBaseError("failed to index embeddings", err)
	}

	ids := make([]int, len(documents))
	for i := range ids {
		ids[i] = i
	}

	kb.mu.Lock()
	kb.documents = documents
	kb.documentIDs = ids
	kb.embeddings = vectors
	kb.index = index
	kb.mu.Unlock()

	kb.logger.Info("knowledge base built", zap.Int("documents", len(documents)))
	return nil
}

// Save persists the knowledge base as the four-file artifact.
func (kb *KnowledgeBase) Save(dir string) error {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if len(kb.documents) == 0 || kb.embeddings == nil || kb.index == nil {
		return NewKnowledgeBaseError("knowledge base not initialized properly before saving", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewKnowledgeBaseError("failed to create output directory", err)
	}

	if err := writeJSON(filepath.Join(dir, documentsFile), kb.documents); err != nil {
		return NewKnowledgeBaseError("failed to save documents", err)
	}
	if err := writeJSON(filepath.Join(dir, documentIDsFile), kb.documentIDs); err != nil {
		return NewKnowledgeBaseError("failed to save document ids", err)
	}
	if err := writeGob(filepath.Join(dir, embeddingsFile), kb.embeddings); err != nil {
		return NewKnowledgeBaseError("failed to save embeddings", err)
	}
	if err := kb.index.Save(filepath.Join(dir, indexFile)); err != nil {
		return NewKnowledgeBaseError("failed to save index", err)
	}

	kb.logger.Info("knowledge base saved", zap.String("dir", dir), zap.Int("documents", len(kb.documents)))
	return nil
}

// Load reads the persisted artifact and swaps it in atomically. Searches keep
// working against the old state until the new one is fully loaded.
func (kb *KnowledgeBase) Load(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return NewKnowledgeBaseError(fmt.Sprintf("knowledge base directory not found: %s", dir), err)
	}

	var documents []models.Document
	if err := readJSON(filepath.Join(dir, documentsFile), &documents); err != nil {
		return NewKnowledgeBaseError("failed to load documents", err)
	}
	var ids []int
	if err := readJSON(filepath.Join(dir, documentIDsFile), &ids); err != nil {
		return NewKnowledgeBaseError("failed to load document ids", err)
	}
	var embeddings [][]float32
	if err := readGob(filepath.Join(dir, embeddingsFile), &embeddings); err != nil {
		return NewKnowledgeBaseError("failed to load embeddings", err)
	}
	index, err := LoadFlatIndex(filepath.Join(dir, indexFile))
	if err != nil {
		return NewKnowledgeBaseError("failed to load index", err)
	}

	if len(documents) != len(ids) || len(documents) != len(embeddings) || len(documents) != index.Len() {
		return NewKnowledgeBaseError(fmt.Sprintf(
			"inconsistent knowledge base artifact: %d documents, %d ids, %d embeddings, %d indexed vectors",
			len(documents), len(ids), len(embeddings), index.Len()), nil)
	}
	if len(documents) == 0 {
		kb.logger.Warn("loaded knowledge base contains no documents")
	}

	kb.mu.Lock()
	kb.documents = documents
	kb.documentIDs = ids
	kb.embeddings = embeddings
	kb.index = index
	kb.mu.Unlock()

	kb.logger.Info("knowledge base loaded", zap.String("dir", dir), zap.Int("documents", len(documents)))
	return nil
}

// Len returns the number of documents in the knowledge base.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.documents)
}

// RestaurantNames lists the distinct restaurant names across all documents,
// in first-seen document order.
func (kb *KnowledgeBase) RestaurantNames() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, doc := range kb.documents {
		name := doc.Restaurant()
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// SimilaritySearch embeds the query, searches 2*topK nearest candidates to
// survive post-filtering, keeps documents whose metadata matches every filter
// key, and truncates to topK. Scores are 1/(1+distance): 1.0 for an exact
// match, approaching 0 as distance grows.
func (kb *KnowledgeBase) SimilaritySearch(ctx context.Context, query string, topK int, filter map[string]string) ([]models.RetrievedDocument, error) {
	if strings.TrimSpace(query) == "" {
		kb.logger.Debug("empty query, skipping search")
		return []models.RetrievedDocument{}, nil
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if kb.index == nil || len(kb.documents) == 0 {
		return nil, NewKnowledgeBaseError("knowledge base not loaded properly", nil)
	}

	queryVector, err := kb.embedder.Embed(ctx, query)
	if err != nil {
		return nil, NewKnowledgeBaseError("failed to embed query", err)
	}

	distances, indices, err := kb.index.Search(queryVector, 2*topK)
	if err != nil {
		return nil, NewKnowledgeBaseError("vector search failed", err)
	}

	results := make([]models.RetrievedDocument, 0, topK)
	for i, idx := range indices {
		if idx < 0 || idx >= len(kb.documents) {
			continue
		}
		doc := kb.documents[idx]
		if !matchesFilter(doc, filter) {
			continue
		}
		results = append(results, models.RetrievedDocument{
			Document: models.Document{
				Content:  doc.Content,
				Metadata: copyMetadata(doc.Metadata),
			},
			Score: 1.0 / (1.0 + float64(distances[i])),
		})
		if len(results) == topK {
			break
		}
	}

	kb.logger.Debug("similarity search complete",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// matchesFilter reports whether every filter key equals the document's
// metadata value for that key.
func matchesFilter(doc models.Document, filter map[string]string) bool {
	for key, want := range filter {
		got, ok := doc.Metadata[key].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// copyMetadata clones a metadata map so retrieval results can be stamped
// without mutating the stored documents.
func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeGob(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

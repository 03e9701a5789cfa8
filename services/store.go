package services

import (
	"context"

	"github.com/restroassist/rag/models"
)

// DocumentStore ranks documents against a query, optionally filtered by
// metadata. Results are ordered by descending score. Implementations must
// return an empty slice (not an error) for empty or whitespace-only queries.
type DocumentStore interface {
	SimilaritySearch(ctx context.Context, query string, topK int, filter map[string]string) ([]models.RetrievedDocument, error)

	// RestaurantNames lists the restaurant names known to the store, used by
	// entity extraction to spot restaurant mentions in free text.
	RestaurantNames() []string
}

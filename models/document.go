package models

// QueryType labels a user question so that retrieval and prompt assembly can be
// steered toward the right content. Exactly one type is assigned per query; the
// classifier falls back to QueryTypeGeneral when nothing more specific matches.
type QueryType string

const (
	QueryTypeDietary    QueryType = "dietary_restrictions"
	QueryTypeMenu       QueryType = "menu_availability"
	QueryTypePrice      QueryType = "price_range"
	QueryTypeComparison QueryType = "comparison"
	QueryTypeLocation   QueryType = "location"
	QueryTypeHours      QueryType = "opening_hours"
	QueryTypeAmbiance   QueryType = "ambiance"
	QueryTypeRating     QueryType = "rating"
	QueryTypeGeneral    QueryType = "general"

	// QueryTypeOutOfScope is assigned by the chat gate for requests the
	// assistant refuses (bookings, deliveries, unrelated topics). It is never
	// produced by the classifier itself.
	QueryTypeOutOfScope QueryType = "out_of_scope"
)

// Document is an immutable retrievable text chunk. Metadata always carries
// "restaurant" and "type" (info, features or menu_item); menu_item documents
// additionally carry "item_name" and "price".
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Restaurant returns the owning restaurant name, or "" when absent.
func (d Document) Restaurant() string {
	if s, ok := d.Metadata["restaurant"].(string); ok {
		return s
	}
	return ""
}

// DocType returns the document kind (info, features, menu_item), or "" when absent.
func (d Document) DocType() string {
	if s, ok := d.Metadata["type"].(string); ok {
		return s
	}
	return ""
}

// RetrievedDocument is a Document with a similarity score attached by a search.
// Score is reciprocal-distance similarity: 1 for an exact match, approaching 0
// as the vector distance grows. Constructed fresh per retrieval call.
type RetrievedDocument struct {
	Document
	Score float64 `json:"score"`
}

// EntitySet holds the domain entities extracted from a single query. Order is
// insertion order from extraction and duplicates are possible; callers must not
// assume uniqueness.
type EntitySet struct {
	Restaurants  []string `json:"restaurants"`
	MenuItems    []string `json:"menu_items"`
	DietaryTerms []string `json:"dietary_terms"`
	Cuisines     []string `json:"cuisines"`
}

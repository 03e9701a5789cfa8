package services

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

// queryTypeRules is the priority-ordered classifier: the first rule whose
// pattern matches the lower-cased query wins. Dietary and comparison phrasing
// often also contains menu words, so the more specific categories come first.
var queryTypeRules = []struct {
	pattern   *regexp.Regexp
	queryType models.QueryType
}{
	{regexp.MustCompile(`vegan|vegetarian|gluten.?free|dairy.?free|allergies|dietary|halal|jain`), models.QueryTypeDietary},
	{regexp.MustCompile(`menu|dish|serve|offer|have.*?items?|food|eat`), models.QueryTypeMenu},
	{regexp.MustCompile(`price|cost|expensive|cheap|affordable|range|budget`), models.QueryTypePrice},
	{regexp.MustCompile(`compare|difference|versus|vs\.?|better|between`), models.QueryTypeComparison},
	{regexp.MustCompile(`location|address|where|area|direction|situated`), models.QueryTypeLocation},
	{regexp.MustCompile(`time|open|hours|close|available|when`), models.QueryTypeHours},
	{regexp.MustCompile(`ambiance|atmosphere|environment|setting|decor`), models.QueryTypeAmbiance},
	{regexp.MustCompile(`rating|stars|review|popular|recommend`), models.QueryTypeRating},
}

// dietaryVocabulary and cuisineVocabulary are the fixed entity vocabularies.
var (
	dietaryVocabulary = []string{"vegetarian", "vegan", "gluten-free", "dairy-free", "nut-free", "halal", "jain"}
	cuisineVocabulary = []string{"indian", "italian", "chinese", "mexican", "thai", "japanese",
		"mediterranean", "american", "french", "spanish", "middle eastern"}

	quotedItemPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"([^"]+)"`),
		regexp.MustCompile(`'([^']+)'`),
	}
	dishPhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(serve|have|offer|get|find|any|the|their|for)\s+([a-z\s]+?)\s+(dish|meal|food|plate|item)`),
		regexp.MustCompile(`(looking for|want|like|about|tried)\s+([a-z\s]+?)\s+(dish|meal|food|plate|item)`),
	}
)

// Retriever runs expanded queries against the document store, fanning out per
// restaurant when restaurant entities are detected.
type Retriever struct {
	store  DocumentStore
	topK   int
	logger *zap.Logger
}

// NewRetriever creates a retriever over the given store. topK defaults to 5.
func NewRetriever(store DocumentStore, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:  store,
		topK:   topK,
		logger: logger,
	}
}

// DetectQueryType classifies a raw query into a QueryType. No match yields
// QueryTypeGeneral.
func (r *Retriever) DetectQueryType(query string) models.QueryType {
	query = strings.ToLower(query)
	for _, rule := range queryTypeRules {
		if rule.pattern.MatchString(query) {
			return rule.queryType
		}
	}
	return models.QueryTypeGeneral
}

// ExtractEntities pulls restaurant names, dietary terms, cuisines and menu
// item mentions out of the query. Extraction never fails; unmatched categories
// stay empty.
func (r *Retriever) ExtractEntities(query string) models.EntitySet {
	entities := models.EntitySet{
		Restaurants:  []string{},
		MenuItems:    []string{},
		DietaryTerms: []string{},
		Cuisines:     []string{},
	}

	queryLower := strings.ToLower(query)

	for _, name := range r.store.RestaurantNames() {
		if name != "" && strings.Contains(queryLower, strings.ToLower(name)) {
			entities.Restaurants = append(entities.Restaurants, strings.ToLower(name))
		}
	}

	for _, term := range dietaryVocabulary {
		if strings.Contains(queryLower, term) {
			entities.DietaryTerms = append(entities.DietaryTerms, term)
		}
	}

	for _, cuisine := range cuisineVocabulary {
		if strings.Contains(queryLower, cuisine) {
			entities.Cuisines = append(entities.Cuisines, cuisine)
		}
	}

	// Quoted substrings are taken verbatim as menu items.
	for _, pattern := range quotedItemPatterns {
		for _, match := range pattern.FindAllStringSubmatch(query, -1) {
			entities.MenuItems = append(entities.MenuItems, match[1])
		}
	}

	// Unquoted dish mentions, capped at 5 tokens so unrelated clauses are not
	// swept into the entity.
	for _, pattern := range dishPhrasePatterns {
		for _, match := range pattern.FindAllStringSubmatch(queryLower, -1) {
			dish := strings.TrimSpace(match[2])
			if dish != "" && len(strings.Fields(dish)) <= 5 {
				entities.MenuItems = append(entities.MenuItems, dish)
			}
		}
	}

	return entities
}

// EnhanceQuery appends type-specific bag-of-words terms to bias the embedding
// toward relevant content. Expansion only fires when it has concrete signal to
// add; otherwise the query passes through unmodified.
func (r *Retriever) EnhanceQuery(query string, queryType models.QueryType, entities models.EntitySet) string {
	switch queryType {
	case models.QueryTypeDietary:
		if len(entities.DietaryTerms) > 0 {
			return query + " " + strings.Join(entities.DietaryTerms, " ") + " options menu restrictions dietary"
		}
	case models.QueryTypeMenu:
		if len(entities.MenuItems) > 0 {
			return query + " " + strings.Join(entities.MenuItems, " ") + " menu items dishes food"
		}
	case models.QueryTypePrice:
		return query + " price cost menu prices range budget"
	case models.QueryTypeComparison:
		if len(entities.Restaurants) >= 2 {
			return query + " " + strings.Join(entities.Restaurants, " ") + " compare comparison differences"
		}
	case models.QueryTypeLocation:
		return query + " location address area directions map"
	case models.QueryTypeHours:
		return query + " hours open close timing schedule"
	case models.QueryTypeAmbiance:
		return query + " ambiance atmosphere environment setting decor"
	case models.QueryTypeRating:
		return query + " rating review stars popular feedback"
	}
	return query
}

// Retrieve runs the full retrieval step: classify, extract entities, carry
// restaurant entities over from recent history, expand the query, search
// (fanning out per restaurant when appropriate) and stamp every result with
// the detected query type. It returns either a full result list or an error,
// never silent partial results.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter map[string]string, history []models.ConversationTurn) ([]models.RetrievedDocument, error) {
	queryType := r.DetectQueryType(query)
	entities := r.ExtractEntities(query)

	r.logger.Debug("query analyzed",
		zap.String("query_type", string(queryType)),
		zap.Strings("restaurants", entities.Restaurants),
		zap.Strings("menu_items", entities.MenuItems))

	// Entity carry-over: when the current query names no restaurant, adopt the
	// restaurants of the most recent prior query that had any (last 3 turns).
	// Only user queries are scanned, not assistant responses.
	if len(entities.Restaurants) == 0 && len(history) > 0 {
		start := len(history) - 3
		if start < 0 {
			start = 0
		}
		for i := len(history) - 1; i >= start; i-- {
			prev := r.ExtractEntities(history[i].Query)
			if len(prev.Restaurants) > 0 {
				entities.Restaurants = append(entities.Restaurants, prev.Restaurants...)
				break
			}
		}
	}

	enhancedQuery := r.EnhanceQuery(query, queryType, entities)
	if enhancedQuery != query {
		r.logger.Debug("query enhanced", zap.String("enhanced", enhancedQuery))
	}

	var results []models.RetrievedDocument
	if len(entities.Restaurants) > 0 && filter == nil {
		// Restaurant-scoped fan-out: one bounded search per detected
		// restaurant, then merge, stable-sort by score and truncate. Entities
		// are lower-cased, so resolve each back to the store's canonical name
		// before filtering.
		for _, restaurant := range entities.Restaurants {
			scoped, err := r.store.SimilaritySearch(ctx, enhancedQuery, r.topK, map[string]string{"restaurant": r.canonicalName(restaurant)})
			if err != nil {
				return nil, NewRetrieverError("failed to retrieve relevant documents", err)
			}
			results = append(results, scoped...)
		}
		sort.SliceStable(results, func(a, b int) bool {
			return results[a].Score > results[b].Score
		})
		if len(results) > r.topK {
			results = results[:r.topK]
		}
	} else {
		var err error
		results, err = r.store.SimilaritySearch(ctx, enhancedQuery, r.topK, filter)
		if err != nil {
			return nil, NewRetrieverError("failed to retrieve relevant documents", err)
		}
	}

	for i := range results {
		if results[i].Metadata == nil {
			results[i].Metadata = make(map[string]interface{})
		}
		results[i].Metadata["query_type"] = string(queryType)
	}

	return results, nil
}

// canonicalName maps a lower-cased restaurant entity back to the store's exact
// metadata spelling so the equality filter matches.
func (r *Retriever) canonicalName(entity string) string {
	for _, name := range r.store.RestaurantNames() {
		if strings.EqualFold(name, entity) {
			return name
		}
	}
	return entity
}

package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restroassist/rag/models"
)

type searchCall struct {
	query  string
	topK   int
	filter map[string]string
}

// fakeStore serves canned results keyed by the restaurant filter value
// ("" for unfiltered searches).
type fakeStore struct {
	names   []string
	results map[string][]models.RetrievedDocument
	err     error
	calls   []searchCall
}

func (f *fakeStore) SimilaritySearch(_ context.Context, query string, topK int, filter map[string]string) ([]models.RetrievedDocument, error) {
	f.calls = append(f.calls, searchCall{query: query, topK: topK, filter: filter})
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(query) == "" {
		return []models.RetrievedDocument{}, nil
	}

	key := ""
	if filter != nil {
		key = filter["restaurant"]
	}
	docs := f.results[key]
	out := make([]models.RetrievedDocument, len(docs))
	for i, doc := range docs {
		out[i] = models.RetrievedDocument{
			Document: models.Document{Content: doc.Content, Metadata: copyMetadata(doc.Metadata)},
			Score:    doc.Score,
		}
	}
	return out, nil
}

func (f *fakeStore) RestaurantNames() []string {
	return f.names
}

func doc(restaurant, content string, score float64) models.RetrievedDocument {
	return models.RetrievedDocument{
		Document: models.Document{
			Content:  content,
			Metadata: map[string]interface{}{"restaurant": restaurant, "type": "info"},
		},
		Score: score,
	}
}

func TestDetectQueryType(t *testing.T) {
	r := NewRetriever(&fakeStore{}, 5, zap.NewNop())

	tests := []struct {
		query string
		want  models.QueryType
	}{
		{"Do you have vegan options?", models.QueryTypeDietary},
		{"Is the biryani gluten free?", models.QueryTypeDietary},
		{"What dishes do you serve?", models.QueryTypeMenu},
		{"Is it very expensive there?", models.QueryTypePrice},
		{"Compare Biryani Blues with Ovenstory", models.QueryTypeComparison},
		{"Where is the restaurant situated?", models.QueryTypeLocation},
		{"What are the opening hours?", models.QueryTypeHours},
		{"How is the atmosphere?", models.QueryTypeAmbiance},
		{"What is the rating?", models.QueryTypeRating},
		{"Tell me about Biryani Blues", models.QueryTypeGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, r.DetectQueryType(tt.query))
		})
	}
}

func TestDetectQueryType_DietaryBeatsMenu(t *testing.T) {
	r := NewRetriever(&fakeStore{}, 5, zap.NewNop())

	// Dietary phrasing frequently also contains menu words; the dietary rule
	// must win because it is tested first.
	queries := []string{
		"Do you have vegetarian dishes on the menu?",
		"Any vegan food I can eat?",
		"Is there a halal menu?",
	}
	for _, q := range queries {
		assert.Equal(t, models.QueryTypeDietary, r.DetectQueryType(q), "query: %s", q)
	}
}

func TestExtractEntities(t *testing.T) {
	store := &fakeStore{names: []string{"Biryani Blues", "Ovenstory"}}
	r := NewRetriever(store, 5, zap.NewNop())

	t.Run("quoted menu item", func(t *testing.T) {
		entities := r.ExtractEntities(`Tell me about "Spicy Noodles"`)
		assert.Contains(t, entities.MenuItems, "Spicy Noodles")
	})

	t.Run("single quoted menu item", func(t *testing.T) {
		entities := r.ExtractEntities(`I want 'Paneer Tikka' today`)
		assert.Contains(t, entities.MenuItems, "Paneer Tikka")
	})

	t.Run("restaurant and dietary term", func(t *testing.T) {
		entities := r.ExtractEntities("Do you have vegetarian biryani at Biryani Blues?")
		assert.Contains(t, entities.Restaurants, "biryani blues")
		assert.Contains(t, entities.DietaryTerms, "vegetarian")
	})

	t.Run("cuisine", func(t *testing.T) {
		entities := r.ExtractEntities("Looking for good italian food nearby")
		assert.Contains(t, entities.Cuisines, "italian")
	})

	t.Run("dish phrase", func(t *testing.T) {
		entities := r.ExtractEntities("Do they serve chicken biryani dish here?")
		assert.Contains(t, entities.MenuItems, "chicken biryani")
	})

	t.Run("dish phrase capped at five tokens", func(t *testing.T) {
		entities := r.ExtractEntities("do you serve one two three four five six dish")
		assert.NotContains(t, entities.MenuItems, "one two three four five six")
	})

	t.Run("no entities", func(t *testing.T) {
		entities := r.ExtractEntities("hello there")
		assert.Empty(t, entities.Restaurants)
		assert.Empty(t, entities.MenuItems)
		assert.Empty(t, entities.DietaryTerms)
		assert.Empty(t, entities.Cuisines)
	})
}

func TestEnhanceQuery(t *testing.T) {
	r := NewRetriever(&fakeStore{}, 5, zap.NewNop())

	t.Run("general passes through", func(t *testing.T) {
		query := "Tell me about Biryani Blues"
		assert.Equal(t, query, r.EnhanceQuery(query, models.QueryTypeGeneral, models.EntitySet{}))
	})

	t.Run("dietary adds terms", func(t *testing.T) {
		query := "Do you have vegan options?"
		enhanced := r.EnhanceQuery(query, models.QueryTypeDietary, models.EntitySet{DietaryTerms: []string{"vegan"}})
		assert.True(t, strings.HasPrefix(enhanced, query))
		assert.Contains(t, enhanced, "options menu restrictions dietary")
	})

	t.Run("dietary without terms passes through", func(t *testing.T) {
		query := "Anything for my allergies?"
		assert.Equal(t, query, r.EnhanceQuery(query, models.QueryTypeDietary, models.EntitySet{}))
	})

	t.Run("comparison needs two restaurants", func(t *testing.T) {
		query := "Which one is better?"
		one := models.EntitySet{Restaurants: []string{"biryani blues"}}
		two := models.EntitySet{Restaurants: []string{"biryani blues", "ovenstory"}}

		assert.Equal(t, query, r.EnhanceQuery(query, models.QueryTypeComparison, one))

		enhanced := r.EnhanceQuery(query, models.QueryTypeComparison, two)
		assert.True(t, strings.HasPrefix(enhanced, query))
		assert.Contains(t, enhanced, "compare comparison differences")
	})

	t.Run("price always expands", func(t *testing.T) {
		enhanced := r.EnhanceQuery("How much is it?", models.QueryTypePrice, models.EntitySet{})
		assert.Contains(t, enhanced, "price cost menu prices range budget")
	})
}

func TestRetrieve_FanOut(t *testing.T) {
	store := &fakeStore{
		names: []string{"Biryani Blues", "Ovenstory"},
		results: map[string][]models.RetrievedDocument{
			"Biryani Blues": {
				doc("Biryani Blues", "biryani info", 0.9),
				doc("Biryani Blues", "biryani menu", 0.5),
			},
			"Ovenstory": {
				doc("Ovenstory", "pizza info", 0.8),
				doc("Ovenstory", "pizza menu", 0.7),
			},
		},
	}
	r := NewRetriever(store, 3, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "Compare Biryani Blues with Ovenstory", nil, nil)
	require.NoError(t, err)

	// One scoped search per detected restaurant.
	require.Len(t, store.calls, 2)
	assert.Equal(t, map[string]string{"restaurant": "Biryani Blues"}, store.calls[0].filter)
	assert.Equal(t, map[string]string{"restaurant": "Ovenstory"}, store.calls[1].filter)

	// Merged, sorted by score descending, truncated to topK.
	require.Len(t, results, 3)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 0.8, results[1].Score)
	assert.Equal(t, 0.7, results[2].Score)

	for _, res := range results {
		assert.Equal(t, string(models.QueryTypeComparison), res.Metadata["query_type"])
	}
}

func TestRetrieve_EntityCarryOver(t *testing.T) {
	store := &fakeStore{
		names: []string{"Biryani Blues"},
		results: map[string][]models.RetrievedDocument{
			"Biryani Blues": {doc("Biryani Blues", "biryani info", 0.9)},
		},
	}
	r := NewRetriever(store, 5, zap.NewNop())

	history := []models.ConversationTurn{
		{Query: "Tell me about Biryani Blues", Response: "It is a biryani place."},
	}

	_, err := r.Retrieve(context.Background(), "What desserts do they have?", nil, history)
	require.NoError(t, err)

	require.Len(t, store.calls, 1)
	assert.Equal(t, map[string]string{"restaurant": "Biryani Blues"}, store.calls[0].filter)
}

func TestRetrieve_CarryOverIgnoresResponses(t *testing.T) {
	store := &fakeStore{names: []string{"Biryani Blues"}}
	r := NewRetriever(store, 5, zap.NewNop())

	// The restaurant was only mentioned in the assistant's response; only
	// prior user queries are scanned, so no carry-over happens.
	history := []models.ConversationTurn{
		{Query: "Any good biryani nearby?", Response: "Biryani Blues is popular."},
	}

	_, err := r.Retrieve(context.Background(), "What desserts do they have?", nil, history)
	require.NoError(t, err)

	require.Len(t, store.calls, 1)
	assert.Nil(t, store.calls[0].filter)
}

func TestRetrieve_ExplicitFilterDisablesFanOut(t *testing.T) {
	store := &fakeStore{
		names: []string{"Biryani Blues"},
		results: map[string][]models.RetrievedDocument{
			"Ovenstory": {doc("Ovenstory", "pizza info", 0.8)},
		},
	}
	r := NewRetriever(store, 5, zap.NewNop())

	filter := map[string]string{"restaurant": "Ovenstory"}
	results, err := r.Retrieve(context.Background(), "What is on the menu at Biryani Blues?", filter, nil)
	require.NoError(t, err)

	require.Len(t, store.calls, 1)
	assert.Equal(t, filter, store.calls[0].filter)
	require.Len(t, results, 1)
	assert.Equal(t, "Ovenstory", results[0].Restaurant())
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	store := &fakeStore{}
	r := NewRetriever(store, 5, zap.NewNop())

	results, err := r.Retrieve(context.Background(), "   ", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_WrapsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("index unavailable")}
	r := NewRetriever(store, 5, zap.NewNop())

	_, err := r.Retrieve(context.Background(), "any biryani?", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRetrieverError(err))
}

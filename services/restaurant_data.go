package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/restroassist/rag/models"
)

// LoadRestaurantData reads and validates the upstream restaurant-data artifact.
func LoadRestaurantData(path string) ([]models.Restaurant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewKnowledgeBaseError(fmt.Sprintf("data file not found: %s", path), err)
	}

	var restaurants []models.Restaurant
	if err := json.Unmarshal(data, &restaurants); err != nil {
		return nil, NewKnowledgeBaseError("invalid JSON in data file", err)
	}

	for i, r := range restaurants {
		if r.Name == "" {
			return nil, NewKnowledgeBaseError(fmt.Sprintf("missing required field 'name' in record %d", i), nil)
		}
	}
	return restaurants, nil
}

// ProcessRestaurants turns restaurant records into retrievable documents: one
// info document per restaurant, one features document per non-empty feature
// list, and one document per menu item.
func ProcessRestaurants(restaurants []models.Restaurant) []models.Document {
	var documents []models.Document

	for _, r := range restaurants {
		location := r.Location
		if location == "" {
			location = "Location not available"
		}

		info := fmt.Sprintf("Restaurant: %s\nLocation: %s\nHours: %s\nContact: %s\n",
			r.Name, location, r.OperatingHours, r.ContactInfo)
		documents = append(documents, models.Document{
			Content: info,
			Metadata: map[string]interface{}{
				"restaurant": r.Name,
				"type":       "info",
			},
		})

		if len(r.SpecialFeatures) > 0 {
			features := fmt.Sprintf("Restaurant %s features: %s", r.Name, strings.Join(r.SpecialFeatures, ", "))
			documents = append(documents, models.Document{
				Content: features,
				Metadata: map[string]interface{}{
					"restaurant": r.Name,
					"type":       "features",
				},
			})
		}

		for _, item := range r.Menu {
			name := item.Name
			if name == "" {
				name = "Unnamed item"
			}
			description := item.Description
			if description == "" {
				description = "No description available"
			}
			menuText := fmt.Sprintf("Restaurant: %s\nMenu Item: %s\nDescription: %s\nPrice: %g",
				r.Name, name, description, item.Price)
			documents = append(documents, models.Document{
				Content: menuText,
				Metadata: map[string]interface{}{
					"restaurant": r.Name,
					"type":       "menu_item",
					"item_name":  name,
					"price":      item.Price,
				},
			})
		}
	}
	return documents
}

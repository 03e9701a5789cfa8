package models

// MenuItem is a single dish as produced by the upstream scraping step.
type MenuItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	FoodType    string  `json:"food_type"`
	Rating      float64 `json:"rating"`
}

// Restaurant is one record of the upstream restaurant-data artifact. The
// knowledge-base build step turns each record into retrievable documents.
type Restaurant struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Location        string     `json:"location"`
	Menu            []MenuItem `json:"menu"`
	SpecialFeatures []string   `json:"special_features"`
	OperatingHours  string     `json:"operating_hours"`
	ContactInfo     string     `json:"contact_info"`
}

package devserver

import (
	"fmt"
	"strings"
)

// Row is one search result.
type Row map[string]any

// Fixtures holds the canned search data per resource.
type Fixtures map[string][]Row

// DefaultFixtures returns a small plant network across two regions.
func DefaultFixtures() Fixtures {
	return Fixtures{
		"factories": {
			{"id": "7", "name": "Plant 7", "regionId": "north", "city": "Kano"},
			{"id": "9", "name": "Plant 9", "regionId": "south", "city": "Lagos"},
			{"id": "12", "name": "Plant 12", "regionId": "north", "city": "Kaduna"},
		},
		"data": {
			{"id": "d-1", "factoryId": "7", "regionId": "north", "metric": "oee", "value": 0.82},
			{"id": "d-2", "factoryId": "7", "regionId": "north", "metric": "scrap_rate", "value": 0.031},
			{"id": "d-3", "factoryId": "9", "regionId": "south", "metric": "oee", "value": 0.77},
			{"id": "d-4", "factoryId": "12", "regionId": "north", "metric": "downtime_minutes", "value": 42},
		},
	}
}

func (r Row) str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (r Row) matches(q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, v := range r {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

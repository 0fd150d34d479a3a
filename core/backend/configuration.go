package backend

import (
	"fmt"
	"regexp"

	"github.com/goccy/go-json"
)

// Configuration holds a complete backend configuration
type Configuration struct {
	Collections []collectionConfiguration `json:"collections"`
}

// collectionConfiguration describes a queryable collection resource
type collectionConfiguration struct {
	Resource string `json:"resource"`
	// Collection is the name of the MongoDB collection. It defaults to Resource.
	Collection  string `json:"collection"`
	Description string `json:"description"`
	// SchemaID validates inserted documents if set
	SchemaID string `json:"schema_id"`
	// MaxPageSize caps the page size of queries. It defaults to data.MaxPageSize.
	MaxPageSize int `json:"max_page_size"`
}

var resourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseConfiguration parses and checks a JSON backend configuration
func ParseConfiguration(s string) (Configuration, error) {
	var config Configuration
	if err := json.Unmarshal([]byte(s), &config); err != nil {
		return config, fmt.Errorf("parse error in backend configuration: %w", err)
	}

	seen := map[string]bool{}
	for i := range config.Collections {
		c := &config.Collections[i]
		if !resourcePattern.MatchString(c.Resource) {
			return config, fmt.Errorf("invalid resource name '%s'", c.Resource)
		}
		if seen[c.Resource] {
			return config, fmt.Errorf("resource '%s' is configured twice", c.Resource)
		}
		seen[c.Resource] = true
		if c.Collection == "" {
			c.Collection = c.Resource
		}
		if c.MaxPageSize < 0 {
			return config, fmt.Errorf("resource '%s': max_page_size must not be negative", c.Resource)
		}
	}
	return config, nil
}

// internal/models/profile_schema.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// profileSchema validates profile payloads arriving from the identity
// collaborator before they are snapshotted. Structural checks only; range
// invariants live in Validate.
const profileSchema = `{
	"type": "object",
	"required": ["userId", "budget", "cleanliness", "socialLevel", "noiseTolerance", "smokingTolerance", "petTolerance"],
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"version": {"type": "integer", "minimum": 0},
		"budget": {
			"type": "object",
			"required": ["min", "max"],
			"properties": {
				"min": {"type": "number", "minimum": 0},
				"max": {"type": "number", "minimum": 0},
				"currency": {"type": "string"}
			}
		},
		"moveIn": {"type": "object"},
		"locations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["area"],
				"properties": {
					"area": {"type": "string", "minLength": 1},
					"rank": {"type": "integer", "minimum": 1}
				}
			}
		},
		"maxCommuteMinutes": {"type": "integer", "minimum": 0},
		"cleanliness": {"type": "integer", "minimum": 1, "maximum": 5},
		"socialLevel": {"type": "integer", "minimum": 1, "maximum": 5},
		"noiseTolerance": {"type": "integer", "minimum": 1, "maximum": 5},
		"smokingTolerance": {"type": "integer", "minimum": 1, "maximum": 5},
		"petTolerance": {"type": "integer", "minimum": 1, "maximum": 5},
		"age": {"type": "integer", "minimum": 0},
		"gender": {"type": "string"},
		"acceptedGenders": {"type": "array", "items": {"type": "string"}},
		"acceptedAgeMin": {"type": "integer", "minimum": 0},
		"acceptedAgeMax": {"type": "integer", "minimum": 0},
		"maxGroupSize": {"type": "integer", "minimum": 0},
		"interests": {"type": "array", "items": {"type": "string"}}
	}
}`

var profileSchemaLoader = gojsonschema.NewStringLoader(profileSchema)

// ParseProfilePayload validates raw profile JSON against the schema and
// decodes it into a PreferenceProfile. Schema violations come back as a
// single INVALID_PROFILE-ready detail string.
func ParseProfilePayload(data []byte) (*PreferenceProfile, error) {
	result, err := gojsonschema.Validate(profileSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("profile schema validation: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("profile payload invalid: %s", strings.Join(details, "; "))
	}

	var p PreferenceProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile payload: %w", err)
	}
	return &p, nil
}

package schema

import (
	"encoding/json"
	"strings"

	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

func optionalString() *Schema { return &Schema{Type: String} }
func optionalNumber() *Schema { return &Schema{Type: Number} }

func enumOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// ObservationSchema describes a single observation as returned by the model.
func ObservationSchema() *Schema {
	return &Schema{
		Type:     Object,
		Required: true,
		Fields: map[string]*Schema{
			"applicationId": optionalString(),
			"address":       {Type: String, Required: true},
			"applicant":     optionalString(),
			"behalf":        optionalString(),
			"description":   optionalString(),
			"buildingType":  {Type: String, PossibleValues: enumOf(entities.BuildingTypes)},
			"status":        {Type: String, PossibleValues: enumOf(entities.Statuses)},
			"dates": {
				Type: Object,
				Fields: map[string]*Schema{
					"appliedDate":       optionalString(),
					"publicHearingDate": optionalString(),
					"approvalDate":      optionalString(),
					"denialDate":        optionalString(),
					"withdrawnDate":     optionalString(),
				},
			},
			"stats": {
				Type: Object,
				Fields: map[string]*Schema{
					"buildings": optionalNumber(),
					"stratas":   optionalNumber(),
					"rentals":   optionalNumber(),
					"hotels":    optionalNumber(),
					"fsr":       optionalNumber(),
					"storeys":   optionalNumber(),
				},
			},
			"zoning": {
				Type: Object,
				Fields: map[string]*Schema{
					"previousZoningCode":        optionalString(),
					"previousZoningDescription": optionalString(),
					"newZoningCode":             optionalString(),
					"newZoningDescription":      optionalString(),
				},
			},
		},
	}
}

// ResponseSchema describes a full model response: a list of observations.
// A single bare observation is accepted and wrapped.
func ResponseSchema() *Schema {
	return &Schema{Type: Array, Required: true, ElementType: ObservationSchema()}
}

// Parse decodes raw model output into its generic JSON form. Markdown code
// fences around the payload are ignored.
func Parse(raw string) (any, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, errors.NewParseError("json", "", "model response is not JSON", err)
	}
	return v, nil
}

// DecodeObservations converts a validated response value into observations.
// Only values that passed Validate or Prune should be decoded.
func DecodeObservations(v any) ([]entities.Observation, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapParse("json", "", err)
	}

	var list []entities.Observation
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	return list, nil
}

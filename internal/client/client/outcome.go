package client

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/lumensanctum/sanctum/internal/client/models"
)

//go:embed outcome.schema.json
var outcomeSchema []byte

type wireOutcome struct {
	Response           string        `json:"response"`
	Confidence         *float64      `json:"confidence"`
	Guidance           string        `json:"guidance"`
	ConsentViolation   bool          `json:"consentViolation"`
	SuspectedTampering bool          `json:"suspectedTampering"`
	GeneratedMedia     *models.Media `json:"generatedMedia"`
}

// OutcomeDecoder validates raw backend payloads and turns them into
// models.Outcome.
type OutcomeDecoder struct {
	schema *jsonschema.Schema
}

func NewOutcomeDecoder() (*OutcomeDecoder, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(outcomeSchema)
	if err != nil {
		return nil, fmt.Errorf("compile outcome schema: %w", err)
	}
	return &OutcomeDecoder{schema: schema}, nil
}

// Decode checks body against the schema and picks the variant. Tampering
// wins over a consent violation, which wins over a normal reply.
func (d *OutcomeDecoder) Decode(body []byte) (models.Outcome, error) {
	result := d.schema.ValidateJSON(body)
	if !result.IsValid() {
		msgs := make([]string, 0, len(result.Errors))
		for field, evalErr := range result.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		sort.Strings(msgs)
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(msgs, "; "))
	}

	var w wireOutcome
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	switch {
	case w.SuspectedTampering:
		return models.OutcomeSuspectedTampering{}, nil
	case w.ConsentViolation:
		return models.OutcomeConsentViolation{Guidance: w.Guidance}, nil
	default:
		return models.OutcomeOK{
			Response:       w.Response,
			Confidence:     w.Confidence,
			GeneratedMedia: w.GeneratedMedia,
		}, nil
	}
}

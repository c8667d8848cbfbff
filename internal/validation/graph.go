package validation

import (
	"strings"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// GraphValidator runs the full validation pipeline over a graph document:
// structural (JSON Schema), semantic (endpoints, handles, node config), and
// graph analysis (cycles, connectivity). Structural failures short-circuit
// the later stages since they cannot produce meaningful results on a
// malformed document.
type GraphValidator struct {
	structural *JSONSchemaValidator
	checker    ConfigChecker
}

// NewGraphValidator builds a validator. checker may be nil, in which case
// per-node config prechecks are skipped.
func NewGraphValidator(checker ConfigChecker) (*GraphValidator, error) {
	jv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &GraphValidator{structural: jv, checker: checker}, nil
}

// Schemas exposes the underlying JSON Schema validator for callers that need
// to validate arbitrary values against node-provided schemas.
func (g *GraphValidator) Schemas() *JSONSchemaValidator {
	return g.structural
}

// Validate runs all validation stages and returns the accumulated result.
func (g *GraphValidator) Validate(doc *schema.GraphDocument) *schema.ValidationResult {
	result := g.validateStructural(doc)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(doc, g.checker))
	if !result.Valid() {
		return result
	}

	result.Merge(validateDAG(doc))
	return result
}

// validateStructural converts the JSON Schema validator's error into
// per-violation result entries.
func (g *GraphValidator) validateStructural(doc *schema.GraphDocument) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := g.structural.ValidateDocument(doc)
	if err == nil {
		return result
	}

	fe, ok := err.(*schema.FlowdeckError)
	if !ok {
		result.AddError("/", schema.ErrCodeMalformed, err.Error())
		return result
	}

	violations, _ := fe.Details["violations"].([]string)
	if len(violations) == 0 {
		result.AddError("/", fe.Code, fe.Message)
		return result
	}

	for _, v := range violations {
		path, msg := splitViolation(v)
		result.AddError(path, fe.Code, msg)
	}
	return result
}

// splitViolation separates the "<location>: <message>" form produced by the
// schema validator into its parts.
func splitViolation(v string) (path, msg string) {
	idx := strings.Index(v, ": ")
	if idx < 0 || !strings.HasPrefix(v, "/") {
		return "/", v
	}
	return v[:idx], v[idx+2:]
}

package expressions

import (
	"encoding/json"
	"fmt"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

// SchemaCompiler checks that raw bytes are a compilable JSON Schema. The
// validation package's JSONSchemaValidator satisfies this.
type SchemaCompiler interface {
	CompileCheck(rawSchema []byte) error
}

// Checker prechecks node configuration without executing anything: router
// conditions compile as CEL, transform expressions as expr, jq programs as
// jq, and validator schemas as JSON Schema. It plugs into the semantic
// validation stage.
type Checker struct {
	cel     *CELEngine
	expr    *ExprEngine
	jq      *GoJQEngine
	schemas SchemaCompiler
}

// NewChecker builds a Checker with fresh engines. schemas may be nil to
// skip validator-node schema checks.
func NewChecker(schemas SchemaCompiler) (*Checker, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Checker{
		cel:     celEngine,
		expr:    NewExprEngine(),
		jq:      NewGoJQEngine(),
		schemas: schemas,
	}, nil
}

// CheckNodeConfig compiles the expression fields a node type carries and
// returns the first failure. Nodes without expression fields always pass.
func (c *Checker) CheckNodeConfig(node schema.Node) error {
	switch node.Type {
	case schema.NodeTypeRouter:
		if cond := stringField(node.Data, "condition"); cond != "" {
			if err := c.cel.Compile(cond); err != nil {
				return fmt.Errorf("condition: %w", err)
			}
		}

	case schema.NodeTypeTransform:
		if expr := stringField(node.Data, "expression"); expr != "" {
			if err := c.expr.Compile(expr); err != nil {
				return fmt.Errorf("expression: %w", err)
			}
		}
		if prog := stringField(node.Data, "jq"); prog != "" {
			if err := c.jq.Compile(prog); err != nil {
				return fmt.Errorf("jq: %w", err)
			}
		}

	case schema.NodeTypeAggregator:
		if prog := stringField(node.Data, "jq"); prog != "" {
			if err := c.jq.Compile(prog); err != nil {
				return fmt.Errorf("jq: %w", err)
			}
		}

	case schema.NodeTypeIterator:
		if prog := stringField(node.Data, "expression"); prog != "" {
			if err := c.jq.Compile(prog); err != nil {
				return fmt.Errorf("expression: %w", err)
			}
		}

	case schema.NodeTypeValidator:
		raw, ok := schemaField(node.Data)
		if !ok {
			return nil
		}
		if c.schemas == nil {
			return nil
		}
		if err := c.schemas.CompileCheck(raw); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}

	return nil
}

// stringField reads a string value from node data, returning "" when the
// key is absent or holds a non-string.
func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// schemaField extracts the validator node's schema as raw bytes. It accepts
// either a JSON string or an inline object.
func schemaField(data map[string]any) ([]byte, bool) {
	v, ok := data["schema"]
	if !ok || v == nil {
		return nil, false
	}

	if s, isStr := v.(string); isStr {
		if s == "" {
			return nil, false
		}
		return []byte(s), true
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return raw, true
}

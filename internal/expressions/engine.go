package expressions

import "context"

// Engine evaluates expressions carried in node configuration.
// Three implementations: CEL (router conditions), Expr (transform logic),
// GoJQ (jq programs).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

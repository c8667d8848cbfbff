package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

func TestCELEvaluateConditions(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		data       map[string]any
		want       any
	}{
		{
			name:       "input threshold",
			expression: `inputs.score > 80`,
			data:       map[string]any{"inputs": map[string]any{"score": 92}},
			want:       true,
		},
		{
			name:       "node output comparison",
			expression: `nodes.classifier.label == "spam"`,
			data: map[string]any{"nodes": map[string]any{
				"classifier": map[string]any{"label": "ham"},
			}},
			want: false,
		},
		{
			name:       "string operations",
			expression: `inputs.name.startsWith("flow")`,
			data:       map[string]any{"inputs": map[string]any{"name": "flowdeck"}},
			want:       true,
		},
		{
			name:       "logical combination",
			expression: `inputs.retries < 3 && inputs.enabled`,
			data: map[string]any{"inputs": map[string]any{
				"retries": 1, "enabled": true,
			}},
			want: true,
		},
		{
			name:       "ternary",
			expression: `inputs.count > 0 ? "some" : "none"`,
			data:       map[string]any{"inputs": map[string]any{"count": 0}},
			want:       "none",
		},
	}

	engine, err := NewCELEngine()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(context.Background(), tt.expression, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELMissingScopeDefaultsToEmptyMaps(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	got, err := engine.Evaluate(context.Background(), `"score" in inputs`, nil)
	require.NoError(t, err)
	assert.Equal(t, false, got)
}

func TestCELCompileError(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate(context.Background(), `inputs.score >`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestCELEvaluationError(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	// Key lookup on a missing map entry fails at runtime, not compile time.
	_, err = engine.Evaluate(context.Background(), `inputs.missing == 1`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}

func TestCELEmptyExpression(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestCELCompilePrecheck(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	assert.NoError(t, engine.Compile(`inputs.x > 0`))
	assert.Error(t, engine.Compile(`inputs.x >`))
	assert.Error(t, engine.Compile(``))
}

func TestCELCachesCompiledPrograms(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{"inputs": map[string]any{"x": 1}}
	_, err = engine.Evaluate(context.Background(), `inputs.x == 1`, data)
	require.NoError(t, err)
	_, err = engine.Evaluate(context.Background(), `inputs.x == 1`, data)
	require.NoError(t, err)
	assert.Len(t, engine.cache, 1)
}

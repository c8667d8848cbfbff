package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/flowdeck/pkg/schema"
)

func TestGoJQEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		data       map[string]any
		want       any
	}{
		{
			name:       "select field",
			expression: `.result.total`,
			data: map[string]any{"result": map[string]any{
				"total": 42,
			}},
			want: float64(42),
		},
		{
			name:       "reshape object",
			expression: `{sum: (.a + .b)}`,
			data:       map[string]any{"a": 1, "b": 2},
			want:       map[string]any{"sum": float64(3)},
		},
		{
			name:       "filter array",
			expression: `[.rows[] | select(.ok)]`,
			data: map[string]any{"rows": []any{
				map[string]any{"ok": true, "id": 1},
				map[string]any{"ok": false, "id": 2},
			}},
			want: []any{map[string]any{"ok": true, "id": float64(1)}},
		},
		{
			name:       "aggregate",
			expression: `[.values[]] | add`,
			data:       map[string]any{"values": []any{1, 2, 3}},
			want:       float64(6),
		},
		{
			name:       "missing field yields null",
			expression: `.nope`,
			data:       map[string]any{},
			want:       nil,
		},
	}

	engine := NewGoJQEngine()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(context.Background(), tt.expression, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGoJQMultipleOutputs(t *testing.T) {
	engine := NewGoJQEngine()

	got, err := engine.Evaluate(context.Background(), `.items[]`,
		map[string]any{"items": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)
}

func TestGoJQEvaluateAll(t *testing.T) {
	engine := NewGoJQEngine()

	got, err := engine.EvaluateAll(context.Background(), `.items[]`,
		map[string]any{"items": []any{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got)

	got, err = engine.EvaluateAll(context.Background(), `empty`, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGoJQParseError(t *testing.T) {
	engine := NewGoJQEngine()

	_, err := engine.Evaluate(context.Background(), `.[| bad`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGoJQEvaluationError(t *testing.T) {
	engine := NewGoJQEngine()

	_, err := engine.Evaluate(context.Background(), `.name | ascii_downcase`,
		map[string]any{"name": 7})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}

func TestGoJQEnvironmentIsBlocked(t *testing.T) {
	engine := NewGoJQEngine()

	got, err := engine.Evaluate(context.Background(), `env | length`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestGoJQEmptyExpression(t *testing.T) {
	engine := NewGoJQEngine()

	_, err := engine.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGoJQCompilePrecheck(t *testing.T) {
	engine := NewGoJQEngine()

	assert.NoError(t, engine.Compile(`.a | length`))
	assert.Error(t, engine.Compile(`.[| bad`))
	assert.Error(t, engine.Compile(``))
}

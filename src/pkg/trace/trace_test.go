package trace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracerDisabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	shutdown, err := InitTracer("conftest-annotate", false, dir)
	require.NoError(t, err)
	shutdown()

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestInitTracerWritesSpans(t *testing.T) {
	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	dir := filepath.Join(t.TempDir(), "out")
	shutdown, err := InitTracer("conftest-annotate", true, dir)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "Evaluate", attribute.Int("targets", 2))
	_, child := StartSpan(ctx, "Evaluate.Conftest")
	child.End()
	span.End()
	shutdown()

	data, err := os.ReadFile(filepath.Join(dir, FileNamePerformanceReport))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name": "Evaluate"`)
	assert.Contains(t, string(data), `"Name": "Evaluate.Conftest"`)
	assert.Contains(t, string(data), "conftest-annotate")
}

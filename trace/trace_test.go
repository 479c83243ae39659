package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/idforge/xerrors"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		ok   bool
	}{
		{"nil", nil, false},
		{"default", DefaultConfig("idforge"), true},
		{"missing service", &Config{Endpoint: "localhost:4317", Sampler: 1}, false},
		{"missing endpoint", &Config{ServiceName: "idforge", Sampler: 1}, false},
		{"sampler out of range", &Config{ServiceName: "idforge", Endpoint: "x:1", Sampler: 1.5}, false},
		{"bad batcher", &Config{ServiceName: "idforge", Endpoint: "x:1", Sampler: 1, Batcher: "lazy"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		})
	}
}

func TestInitDisabledFallsBackToDiscard(t *testing.T) {
	shutdown, err := Init(&Config{Enabled: false, ServiceName: "idforge"})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := Tracer().Start(context.Background(), "probe")
	defer span.End()
	assert.True(t, oteltrace.SpanContextFromContext(ctx).IsValid(), "本地 provider 也应生成有效 TraceID")
}

func TestGinMiddlewareCreatesSpan(t *testing.T) {
	shutdown, err := Discard("idforge")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware("idforge"))

	var valid bool
	r.GET("/probe", func(c *gin.Context) {
		valid = oteltrace.SpanContextFromContext(c.Request.Context()).IsValid()
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, valid)
}

package clog

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// NamespaceKey 是日志中命名空间的字段名
const NamespaceKey = "namespace"

type requestIDKey struct{}

// RequestIDKey 请求 ID 在 Context 中的键，由 HTTP 中间件写入
var RequestIDKey = requestIDKey{}

// WithRequestID 将请求 ID 写入 Context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom 从 Context 读取请求 ID
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// extractContextFields 从 ctx 中提取配置的字段并追加到 attrs
func extractContextFields(ctx context.Context, options *options, attrs []slog.Attr) []slog.Attr {
	if ctx == nil || options == nil {
		return attrs
	}

	for _, cf := range options.contextFields {
		if val := ctx.Value(cf.Key); val != nil {
			attrs = append(attrs, slog.Any(cf.FieldName, val))
		}
	}

	if options.enableTraceExtraction {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			attrs = append(attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return attrs
}

func addNamespaceField(options *options, attrs []slog.Attr) []slog.Attr {
	if options == nil || len(options.namespaceParts) == 0 {
		return attrs
	}
	return append(attrs, slog.String(NamespaceKey, strings.Join(options.namespaceParts, ".")))
}

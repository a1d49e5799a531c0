// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"inventory/internal/pkg/tracing"
)

// Init 配置全局 zerolog logger，所有日志都带上服务名
func Init(serviceName, level string) {
	InitWithWriter(os.Stdout, serviceName, level)
}

// InitWithWriter 与 Init 相同，但允许指定输出（测试中使用）
func InitWithWriter(w io.Writer, serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	zlog.Logger = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回绑定在 context 上的 logger。
// 如果 context 中带有 span，则自动附加 trace_id 字段，便于和 Jaeger 中的链路关联。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		// context 中没有 logger 时 zerolog 返回 disabled logger，退回到全局 logger
		l = &zlog.Logger
	}

	traceID := tracing.GetTraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	withTrace := l.With().Str("trace_id", traceID).Logger()
	return &withTrace
}

// WithContext 把 logger 存入 context，供下游 handler 使用
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

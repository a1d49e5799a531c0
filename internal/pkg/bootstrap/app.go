// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"inventory/internal/pkg/nacos"
	"inventory/internal/pkg/tracing"
	"inventory/internal/pkg/utils"
)

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// Closer 在关停时执行的清理函数
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	Closers          []Closer            // 关停时按后进先出的顺序执行
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑，阻塞直到收到 SIGINT/SIGTERM。
func StartService(info AppInfo) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, info, GetCurrentConfig())
}

// Run 启动服务并阻塞到 ctx 结束，然后执行优雅关停
func Run(ctx context.Context, info AppInfo, cfg *Config) error {
	closers := append([]Closer(nil), info.Closers...)

	// 1. Tracer
	if endpoint := cfg.Infra.Jaeger.Endpoint; endpoint != "" {
		tp, err := tracing.InitTracerProvider(info.ServiceName, endpoint)
		if err != nil {
			return errors.Wrap(err, "failed to initialize tracer provider")
		}
		closers = append(closers, Closer{Name: "tracer provider", Close: tp.Shutdown})
	}

	// 2. 监听端口
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(info.Port))
	if err != nil {
		return errors.Wrapf(err, "could not listen on :%d", info.Port)
	}

	// 3. Nacos 服务注册
	var namingClient *nacos.Client
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			listener.Close()
			return errors.Wrap(err, "failed to initialize nacos client")
		}
		ip, err := utils.GetOutboundIP()
		if err != nil {
			listener.Close()
			return errors.Wrap(err, "failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			listener.Close()
			return err
		}
		closers = append(closers, Closer{Name: "nacos registration", Close: func(context.Context) error {
			defer namingClient.Close()
			return namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port)
		}})
	}

	// 4. 创建并启动 HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("Service listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = errors.Wrap(err, "http server stopped unexpectedly")
	}
	log.Info().Str("service", info.ServiceName).Msg("Shutting down service...")

	// 5. 优雅关停：先停止接收请求，再按后进先出执行清理
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Str("component", c.Name).Msg("Error during shutdown")
		} else {
			log.Info().Str("component", c.Name).Msg("Closed")
		}
	}

	log.Info().Str("service", info.ServiceName).Msg("Service gracefully shut down.")
	return runErr
}

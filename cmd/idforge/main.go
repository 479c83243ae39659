// idforge 是分布式 Snowflake ID 生成服务。
//
//	idforge -config ./configs
//
// 配置可由 IDFORGE_ 前缀的环境变量覆盖，例如 IDFORGE_IDGEN_METHOD=redis。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceyewan/idforge/clog"
)

func main() {
	configPath := flag.String("config", "", "directory containing idforge.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "idforge: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	logger, err := clog.New(&cfg.Log, clog.WithStandardContext())
	if err != nil {
		return err
	}
	defer logger.Flush()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", clog.Error(err))
		return err
	}

	runErr := a.run(ctx, loader)

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.close(closeCtx); err != nil {
		logger.Error("shutdown with errors", clog.Error(err))
	}
	if runErr != nil {
		logger.Error("server stopped", clog.Error(runErr))
		return runErr
	}
	logger.Info("idforge stopped")
	return nil
}

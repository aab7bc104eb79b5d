// cmd/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gantry-control/internal/config"
	"gantry-control/internal/di"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DI 컨테이너 생성
	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		panic("Failed to create DI container: " + err.Error())
	}
	defer container.Cleanup()

	// 서비스 시작
	if err := container.GantryService.Start(ctx); err != nil {
		container.Logger.Fatalf("Failed to start gantry service: %v", err)
	}

	container.Logger.Infof("🎯 Gantry control started successfully")
	container.Logger.Infof("📊 Axes: %v, interlocks: %v", container.Axes.Axes(), container.Supervisor.InterlockNames())

	// 우아한 종료 처리
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 종료 신호 대기
	<-sigChan

	container.Logger.Infof("🛑 Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := container.GantryService.Shutdown(shutdownCtx); err != nil {
		container.Logger.Errorf("Shutdown finished with errors: %v", err)
	}

	container.Logger.Infof("✅ Gantry control shutdown completed")
}

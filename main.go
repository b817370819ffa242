package main

import (
	"context"
	"log"
	"os"

	"satsuei/internal/capture"
	"satsuei/internal/config"
	"satsuei/internal/device"
	"satsuei/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load(os.Getenv("SATSUEI_CONFIG"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 出力先ディレクトリを用意する
	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		log.Fatalf("出力先ディレクトリの作成に失敗しました: %v", err)
	}

	// デバイス列挙とキャプチャマネージャーを組み立てる
	lookup := device.NewLinuxLookup()
	defer lookup.Close()

	deps := capture.NewProductionDeps(
		lookup,
		cfg.Capture.PrefsPath,
		cfg.Capture.OutputDir,
		cfg.Capture.MonitorDevice,
		capture.Mode(cfg.Capture.DefaultMode),
	)
	manager := capture.NewDefaultManager(deps)

	// サーバーを作成
	srv := server.New(cfg, manager, lookup)

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}

	// 終了時にセッションを確実に閉じる
	if err := manager.Stop(ctx); err != nil {
		log.Printf("セッションの停止に失敗しました: %v", err)
	}
}

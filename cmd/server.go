// Package main はSatsueiサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"satsuei/internal/capture"
	"satsuei/internal/config"
	"satsuei/internal/device"
	"satsuei/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		configPath = flag.String("config", "", "設定ファイルのパス")
		outputDir  = flag.String("output", "", "クリップ・画像の出力先ディレクトリ")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Satsuei")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *outputDir != "" {
		cfg.Capture.OutputDir = *outputDir
	}

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
	log.Printf("Satsuei サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}

	// 終了時にセッションを確実に閉じる
	if err := manager.Stop(ctx); err != nil {
		log.Printf("セッションの停止に失敗しました: %v", err)
	}
}

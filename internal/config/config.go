// Package config はアプリケーション全体の設定を担う
//
// # 責務
// - YAMLファイル・環境変数からの設定読み込みと検証
//
// # 仕様
// - 設定ファイルが無い場合はデフォルト値で動作する
// - 環境変数はファイルの値より優先される
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CaptureConfig はキャプチャ関連の設定
type CaptureConfig struct {
	OutputDir     string `yaml:"output_dir"`     // クリップ・併録ファイルの出力先
	PrefsPath     string `yaml:"prefs_path"`     // 撮影設定の保存先
	MonitorDevice string `yaml:"monitor_device"` // 割り込み監視の対象デバイス
	DefaultMode   string `yaml:"default_mode"`   // 初回起動時のモード
}

// Load は設定を読み込む
// パスが空か存在しない場合はデフォルト値を使い、環境変数で上書きする
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
			}
		}
	}

	// 環境変数はファイルの値より優先される
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Capture.OutputDir = getEnvOrDefault("CAPTURE_OUTPUT_DIR", cfg.Capture.OutputDir)
	cfg.Capture.PrefsPath = getEnvOrDefault("CAPTURE_PREFS_PATH", cfg.Capture.PrefsPath)
	cfg.Capture.MonitorDevice = getEnvOrDefault("CAPTURE_MONITOR_DEVICE", cfg.Capture.MonitorDevice)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// defaultConfig はデフォルト設定を返す
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // WebSocketストリーミング用にタイムアウト無効化
		},
		Capture: CaptureConfig{
			OutputDir:     "/var/lib/satsuei/media",
			PrefsPath:     "/var/lib/satsuei/prefs.json",
			MonitorDevice: "/dev/video0",
			DefaultMode:   "still",
		},
	}
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Capture.OutputDir == "" {
		return fmt.Errorf("出力先ディレクトリが指定されていません")
	}
	if c.Capture.PrefsPath == "" {
		return fmt.Errorf("設定保存先が指定されていません")
	}
	if m := c.Capture.DefaultMode; m != "" && m != "still" && m != "motion" {
		return fmt.Errorf("無効なデフォルトモード: %s", m)
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

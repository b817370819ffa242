// Package prefs はユーザーの撮影設定の永続化を担う
//
// # 責務
// - モード・HDR・品質・最後に使用したデバイスの保存と復元
//
// # 仕様
// - Store: 設定の読み書きインターフェース
// - FileStore: JSONファイルへの保存（一時ファイル経由の原子的な書き込み）
// - MemoryStore: テスト用のインメモリ実装
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Preferences はユーザーの撮影設定を表す
type Preferences struct {
	Mode         string `json:"mode"`           // 最後に選択されたモード
	HDR          bool   `json:"hdr"`            // HDRの希望設定
	Quality      string `json:"quality"`        // 動画品質の希望設定
	LastDeviceID string `json:"last_device_id"` // 最後に選択されたデバイス
}

// Store は撮影設定の読み書きを担うインターフェース
type Store interface {
	// Load は保存された設定を読み込む
	// 保存が無い場合はゼロ値の設定を返す
	Load() (Preferences, error)

	// Save は設定を保存する
	Save(p Preferences) error
}

// FileStore はJSONファイルへ設定を保存するStore実装
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore は新しいFileStoreを作成する
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load は保存された設定を読み込む
func (s *FileStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}

	return p, nil
}

// Save は設定を保存する
// 一時ファイルへ書いてからリネームすることで部分的な書き込みを防ぐ
func (s *FileStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("設定のエンコードに失敗: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "prefs-*.json")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("設定の書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("一時ファイルのクローズに失敗: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("設定ファイルの置き換えに失敗: %w", err)
	}

	return nil
}

// MemoryStore はテスト用のインメモリStore実装
type MemoryStore struct {
	mu    sync.Mutex
	prefs Preferences
	saves int
}

// NewMemoryStore は新しいMemoryStoreを作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load は保存された設定を返す
func (s *MemoryStore) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

// Save は設定を保存する
func (s *MemoryStore) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	s.saves++
	return nil
}

// SaveCount は保存された回数を返す
func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

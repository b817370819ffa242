package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// Authorizer はキャプチャ権限の確認を担う
// 権限の付与そのものは外部（OSのグループ設定など）で行われる
type Authorizer interface {
	// Authorized はキャプチャが許可されているかどうかを返す
	Authorized(ctx context.Context) bool
}

// DeviceNodeAuthorizer はデバイスノードへのアクセス可否で権限を判定する
// videoグループに属していないユーザーは/dev/video*を開けない
type DeviceNodeAuthorizer struct{}

// NewDeviceNodeAuthorizer は新しいDeviceNodeAuthorizerを作成する
func NewDeviceNodeAuthorizer() *DeviceNodeAuthorizer {
	return &DeviceNodeAuthorizer{}
}

// Authorized はいずれかのビデオデバイスノードを開けるかどうかを返す
func (a *DeviceNodeAuthorizer) Authorized(_ context.Context) bool {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil || len(matches) == 0 {
		return false
	}

	for _, path := range matches {
		file, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			continue
		}
		_ = file.Close()
		return true
	}

	return false
}

// MockAuthorizer はテスト用のAuthorizer実装
type MockAuthorizer struct {
	mu      sync.Mutex
	allowed bool
}

// NewMockAuthorizer は新しいMockAuthorizerを作成する
func NewMockAuthorizer(allowed bool) *MockAuthorizer {
	return &MockAuthorizer{allowed: allowed}
}

// Authorized は設定された許可状態を返す
func (m *MockAuthorizer) Authorized(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowed
}

// SetAllowed はテスト用に許可状態を変更する
func (m *MockAuthorizer) SetAllowed(allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowed = allowed
}

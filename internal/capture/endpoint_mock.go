package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"satsuei/internal/device"
)

// MockStillEndpoint はテスト用の静止画エンドポイント実装
type MockStillEndpoint struct {
	mu      sync.Mutex
	dev     device.Device
	format  device.Format
	applied int // ApplyDeviceの呼び出し回数

	// テスト制御用
	shouldFailApply bool
	captureErr      error
	noData          bool

	// 併録クリップの完了を手動制御するためのゲート
	// nilの場合は即座に完了する
	companionGate chan struct{}
}

// NewMockStillEndpoint は新しいMockStillEndpointを作成する
func NewMockStillEndpoint() *MockStillEndpoint {
	return &MockStillEndpoint{}
}

// ApplyDevice はエンドポイントを新しいデバイス・フォーマットに合わせる
func (m *MockStillEndpoint) ApplyDevice(dev device.Device, f device.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailApply {
		return fmt.Errorf("モック: デバイスの適用に失敗")
	}

	m.dev = dev
	m.format = f
	m.applied++
	return nil
}

// Capture は全フェーズを順に通知するモックキャプチャを実行する
func (m *MockStillEndpoint) Capture(ctx context.Context, opts StillOptions, delegate StillCaptureDelegate) {
	m.mu.Lock()
	captureErr := m.captureErr
	noData := m.noData
	gate := m.companionGate
	m.mu.Unlock()

	go func() {
		delegate.WillBeginCapture()

		var companionWg sync.WaitGroup
		if opts.CompanionClip {
			delegate.DidBeginCompanionClip()
			companionWg.Add(1)
			go func() {
				defer companionWg.Done()
				if gate != nil {
					select {
					case <-gate:
					case <-ctx.Done():
					}
				}
				delegate.DidFinishCompanionClip("/tmp/companion-"+uuid.New().String()+".mp4", nil)
			}()
		}

		delegate.WillCapturePhoto()

		switch {
		case captureErr != nil:
			delegate.DidFinishCapture(nil, captureErr)
		case noData:
			delegate.DidFinishCapture(nil, nil)
		default:
			delegate.DidFinishCapture([]byte{0xFF, 0xD8, 0xFF, 0xD9}, nil)
		}

		companionWg.Wait()
	}()
}

// AppliedCount はApplyDeviceの呼び出し回数を返す
func (m *MockStillEndpoint) AppliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

// SetShouldFailApply はテスト用にApplyDevice失敗を設定する
func (m *MockStillEndpoint) SetShouldFailApply(shouldFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailApply = shouldFail
}

// SetCaptureError はテスト用にキャプチャ失敗を設定する
func (m *MockStillEndpoint) SetCaptureError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureErr = err
}

// SetNoData はテスト用にデータ無し完了を設定する
func (m *MockStillEndpoint) SetNoData(noData bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noData = noData
}

// HoldCompanions は併録クリップの完了を手動制御に切り替える
// 以後の併録クリップはReleaseCompanionが呼ばれるまで完了しない
func (m *MockStillEndpoint) HoldCompanions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companionGate = make(chan struct{})
}

// ReleaseCompanion は保留中の併録クリップを1つ完了させる
func (m *MockStillEndpoint) ReleaseCompanion() {
	m.mu.Lock()
	gate := m.companionGate
	m.mu.Unlock()
	if gate != nil {
		gate <- struct{}{}
	}
}

// MockClipEndpoint はテスト用の動画エンドポイント実装
type MockClipEndpoint struct {
	mu        sync.Mutex
	dev       device.Device
	format    device.Format
	applied   int
	recording bool
	startedAt time.Time
	delegate  ClipRecordingDelegate
	lastOpts  ClipOptions

	// テスト制御用
	shouldFailStart bool
	shouldFailApply bool
	stopErr         error
}

// NewMockClipEndpoint は新しいMockClipEndpointを作成する
func NewMockClipEndpoint() *MockClipEndpoint {
	return &MockClipEndpoint{}
}

// ApplyDevice はエンドポイントを新しいデバイス・フォーマットに合わせる
func (m *MockClipEndpoint) ApplyDevice(dev device.Device, f device.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailApply {
		return fmt.Errorf("モック: デバイスの適用に失敗")
	}

	m.dev = dev
	m.format = f
	m.applied++
	return nil
}

// StartRecording は記録を開始する
func (m *MockClipEndpoint) StartRecording(_ context.Context, opts ClipOptions, delegate ClipRecordingDelegate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailStart {
		return fmt.Errorf("モック: 記録の開始に失敗")
	}
	if m.recording {
		return fmt.Errorf("記録は既に開始されています")
	}

	m.recording = true
	m.startedAt = time.Now()
	m.delegate = delegate
	m.lastOpts = opts
	return nil
}

// StopRecording は記録を停止し、結果をdelegateへ通知する
func (m *MockClipEndpoint) StopRecording(_ context.Context) error {
	m.mu.Lock()
	if !m.recording {
		m.mu.Unlock()
		return fmt.Errorf("記録が開始されていません")
	}
	delegate := m.delegate
	stopErr := m.stopErr
	m.recording = false
	m.delegate = nil
	m.mu.Unlock()

	go func() {
		if stopErr != nil {
			delegate.DidFinishRecording("", stopErr)
			return
		}
		delegate.DidFinishRecording("/tmp/clip-"+uuid.New().String()+".mp4", nil)
	}()

	return nil
}

// Recording は記録中かどうかを返す
func (m *MockClipEndpoint) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

// LastOptions は直近のStartRecordingに渡されたオプションを返す
func (m *MockClipEndpoint) LastOptions() ClipOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// AppliedCount はApplyDeviceの呼び出し回数を返す
func (m *MockClipEndpoint) AppliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}

// SetShouldFailApply はテスト用にApplyDevice失敗を設定する
func (m *MockClipEndpoint) SetShouldFailApply(shouldFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailApply = shouldFail
}

// SetShouldFailStart はテスト用にStartRecording失敗を設定する
func (m *MockClipEndpoint) SetShouldFailStart(shouldFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailStart = shouldFail
}

// SetStopError はテスト用に停止時のエラーを設定する
func (m *MockClipEndpoint) SetStopError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}

// MockController はテスト用のController実装
type MockController struct {
	mu      sync.Mutex
	applied []ControlSettings
	lockErr error
}

// NewMockController は新しいMockControllerを作成する
func NewMockController() *MockController {
	return &MockController{}
}

// Apply は制御設定を記録する
func (m *MockController) Apply(_ context.Context, _ device.Device, settings ControlSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lockErr != nil {
		return m.lockErr
	}

	m.applied = append(m.applied, settings)
	return nil
}

// Applied は適用された制御設定の履歴を返す
func (m *MockController) Applied() []ControlSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]ControlSettings, len(m.applied))
	copy(history, m.applied)
	return history
}

// SetLockError はテスト用にデバイスロック失敗を設定する
func (m *MockController) SetLockError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockErr = err
}

package device

import (
	"context"
	"fmt"
	"sync"
)

// MockLookup はテスト用のモックLookup実装
type MockLookup struct {
	mu        sync.Mutex
	videos    []Device
	audio     *Device
	defaultID string
	changeCh  chan Device
	closed    bool
}

// NewMockLookup は新しいMockLookupを作成する
// 指定された台数のテスト用ビデオデバイスとオーディオデバイス1台を持つ
func NewMockLookup(videoCount int) *MockLookup {
	m := &MockLookup{
		changeCh: make(chan Device, 4),
		audio: &Device{
			ID:   "audio-0",
			Kind: KindAudio,
			Path: "hw:0,0",
			Name: "テストマイク",
		},
	}

	for i := 0; i < videoCount; i++ {
		m.videos = append(m.videos, makeMockVideoDevice(i))
	}

	return m
}

// makeMockVideoDevice はテスト用ビデオデバイスを生成する
// 偶数番のデバイスは10bitフォーマットに対応する
func makeMockVideoDevice(n int) Device {
	formats := []Format{
		{Width: 1280, Height: 720, FPS: 30},
		{Width: 1920, Height: 1080, FPS: 30, TenBit: n%2 == 0},
	}
	return Device{
		ID:      fmt.Sprintf("video-%d", n),
		Kind:    KindVideo,
		Path:    fmt.Sprintf("/dev/video%d", n),
		Name:    fmt.Sprintf("テストカメラ %d", n+1),
		Formats: formats,
	}
}

// DefaultVideoDevice はデフォルトのビデオデバイスを返す
// SetDefaultVideoDeviceで指定が無ければ列挙順の先頭を返す
func (m *MockLookup) DefaultVideoDevice(_ context.Context) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.videos) == 0 {
		return nil, fmt.Errorf("利用可能なビデオデバイスがありません")
	}
	for _, v := range m.videos {
		if v.ID == m.defaultID {
			d := v
			return &d, nil
		}
	}
	d := m.videos[0]
	return &d, nil
}

// DefaultAudioDevice はデフォルトのオーディオデバイスを返す
func (m *MockLookup) DefaultAudioDevice(_ context.Context) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.audio == nil {
		return nil, fmt.Errorf("利用可能なオーディオデバイスがありません")
	}
	d := *m.audio
	return &d, nil
}

// VideoDevices はモックデバイス一覧を返す
func (m *MockLookup) VideoDevices(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, len(m.videos))
	copy(devices, m.videos)
	return devices, nil
}

// PreferredDeviceChanges は優先デバイス変更チャンネルを返す
func (m *MockLookup) PreferredDeviceChanges() <-chan Device {
	return m.changeCh
}

// Close はチャンネルを閉じる
func (m *MockLookup) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.changeCh)
	}
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockLookup) AddDevice(d Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos = append(m.videos, d)
}

// SetDefaultVideoDevice はテスト用にデフォルトのビデオデバイスを指定する
func (m *MockLookup) SetDefaultVideoDevice(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
}

// RemoveAudioDevice はテスト用にオーディオデバイスを取り除く
func (m *MockLookup) RemoveAudioDevice() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = nil
}

// Nominate はテスト用に優先デバイス変更を通知する
func (m *MockLookup) Nominate(d Device) {
	m.changeCh <- d
}

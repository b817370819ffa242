package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// InterruptionReason は割り込み開始の理由を表す
type InterruptionReason string

const (
	// ReasonDeviceInUse は他プロセスがデバイスを占有していることを表す（競合）
	ReasonDeviceInUse InterruptionReason = "device_in_use"

	// ReasonAudioInUse は他プロセスがオーディオデバイスを占有していることを表す（競合）
	ReasonAudioInUse InterruptionReason = "audio_in_use"

	// ReasonSuspended はシステムのサスペンドなど無害な理由を表す
	ReasonSuspended InterruptionReason = "suspended"
)

// Contention は理由が他プロセスとのリソース競合を意味するかどうかを返す
func (r InterruptionReason) Contention() bool {
	return r == ReasonDeviceInUse || r == ReasonAudioInUse
}

// InterruptionEventKind は割り込み信号の種別を表す
type InterruptionEventKind string

const (
	InterruptionBegan InterruptionEventKind = "began"         // 割り込みが始まった
	InterruptionEnded InterruptionEventKind = "ended"         // 割り込みが終わった
	RuntimeError      InterruptionEventKind = "runtime_error" // パイプラインが予期せず停止した
)

// InterruptionEvent は割り込み・実行時エラーの信号を表す
type InterruptionEvent struct {
	Kind   InterruptionEventKind
	Reason InterruptionReason // Beganのときのみ有効
	Err    error              // RuntimeErrorのときのみ有効
}

// InterruptionSource は割り込み信号の供給元
type InterruptionSource interface {
	// Events は信号チャンネルを返す
	Events() <-chan InterruptionEvent

	// Close は監視を停止しチャンネルを閉じる
	Close()
}

// MonitorHandler はMonitorが信号を変換して呼び出すコールバック群
type MonitorHandler interface {
	// HandleInterruptionBegan は割り込み開始時に呼ばれる
	HandleInterruptionBegan(reason InterruptionReason)

	// HandleInterruptionEnded は割り込み終了時に呼ばれる
	HandleInterruptionEnded()

	// HandleRuntimeError はパイプラインの予期しない停止時に呼ばれる
	HandleRuntimeError(err error)
}

// Monitor は割り込み・実行時エラー信号を購読しハンドラへ変換する
// セッションの寿命と同じだけ動き、二重購読しない
type Monitor struct {
	src     InterruptionSource
	handler MonitorHandler

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewMonitor は新しいMonitorを作成する
func NewMonitor(src InterruptionSource, handler MonitorHandler) *Monitor {
	return &Monitor{
		src:     src,
		handler: handler,
	}
}

// Start は信号の購読を開始する（既に開始済みなら何もしない）
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})

	m.wg.Add(1)
	go m.run(m.stopCh)
}

// Stop は購読を停止する
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

// run は信号を受け取りハンドラへ振り分ける
func (m *Monitor) run(stopCh <-chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-m.src.Events():
			if !ok {
				return
			}

			switch event.Kind {
			case InterruptionBegan:
				m.handler.HandleInterruptionBegan(event.Reason)
			case InterruptionEnded:
				m.handler.HandleInterruptionEnded()
			case RuntimeError:
				m.handler.HandleRuntimeError(event.Err)
			}
		}
	}
}

// DeviceBusySource はデバイスの占有状態を定期的に調べるInterruptionSource実装
// fuserで他プロセスによる占有を検出し、デバイスノードの消失は実行時エラーとする
type DeviceBusySource struct {
	devicePath string
	interval   time.Duration

	eventCh chan InterruptionEvent
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewDeviceBusySource は新しいDeviceBusySourceを作成し、監視を開始する
func NewDeviceBusySource(devicePath string) *DeviceBusySource {
	s := &DeviceBusySource{
		devicePath: devicePath,
		interval:   2 * time.Second,
		eventCh:    make(chan InterruptionEvent, 4),
		stopCh:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.watch()

	return s
}

// Events は信号チャンネルを返す
func (s *DeviceBusySource) Events() <-chan InterruptionEvent {
	return s.eventCh
}

// Close は監視を停止しチャンネルを閉じる
func (s *DeviceBusySource) Close() {
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		close(s.eventCh)
	})
}

// watch はデバイスの占有・消失を定期的にチェックする
func (s *DeviceBusySource) watch() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	interrupted := false
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := os.Stat(s.devicePath); err != nil {
				s.send(InterruptionEvent{Kind: RuntimeError, Err: fmt.Errorf("デバイスが失われました: %w", err)})
				continue
			}

			busy := isDeviceBusy(s.devicePath)
			switch {
			case busy && !interrupted:
				interrupted = true
				s.send(InterruptionEvent{Kind: InterruptionBegan, Reason: ReasonDeviceInUse})
			case !busy && interrupted:
				interrupted = false
				s.send(InterruptionEvent{Kind: InterruptionEnded})
			}
		}
	}
}

// send はイベントを送信する（受信者が追いついていなければ捨てる）
func (s *DeviceBusySource) send(e InterruptionEvent) {
	select {
	case s.eventCh <- e:
	default:
	}
}

// isDeviceBusy はfuserで他プロセスによるデバイスの占有を調べる
func isDeviceBusy(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// fuserは占有プロセスがあれば終了コード0を返す
	cmd := exec.CommandContext(ctx, "fuser", "-s", path)
	return cmd.Run() == nil
}

// MockInterruptionSource はテスト用のInterruptionSource実装
type MockInterruptionSource struct {
	mu      sync.Mutex
	eventCh chan InterruptionEvent
	closed  bool
}

// NewMockInterruptionSource は新しいMockInterruptionSourceを作成する
func NewMockInterruptionSource() *MockInterruptionSource {
	return &MockInterruptionSource{
		eventCh: make(chan InterruptionEvent, 4),
	}
}

// Events は信号チャンネルを返す
func (m *MockInterruptionSource) Events() <-chan InterruptionEvent {
	return m.eventCh
}

// Close はチャンネルを閉じる
func (m *MockInterruptionSource) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.eventCh)
	}
}

// Send はテスト用に信号を送信する
func (m *MockInterruptionSource) Send(e InterruptionEvent) {
	m.eventCh <- e
}

package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// IIOOrientationSource はLinuxのIIO加速度センサーから向きを読み取る
// センサーが無い環境ではOrientationLandscape固定として振る舞う
type IIOOrientationSource struct {
	xPath string
	yPath string

	mu      sync.Mutex
	current Orientation

	changeCh chan Orientation
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewIIOOrientationSource は新しいIIOOrientationSourceを作成し、監視を開始する
func NewIIOOrientationSource() *IIOOrientationSource {
	s := &IIOOrientationSource{
		current:  OrientationLandscape,
		changeCh: make(chan Orientation, 4),
		stopCh:   make(chan struct{}),
	}

	// /sys/bus/iio 配下から加速度センサーを探す
	if x, y, err := findAccelPaths(); err == nil {
		s.xPath = x
		s.yPath = y
		if o, err := s.read(); err == nil {
			s.current = o
		}
	}

	s.wg.Add(1)
	go s.watch()

	return s
}

// Current は現在の向きを返す
func (s *IIOOrientationSource) Current() Orientation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Changes は向きの変化通知チャンネルを返す
func (s *IIOOrientationSource) Changes() <-chan Orientation {
	return s.changeCh
}

// Close は監視を停止しチャンネルを閉じる
func (s *IIOOrientationSource) Close() {
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		close(s.changeCh)
	})
}

// watch は定期的にセンサーを読み、向きの変化を通知する
func (s *IIOOrientationSource) watch() {
	defer s.wg.Done()

	if s.xPath == "" {
		// センサーが無い場合は監視しない（向きは固定）
		<-s.stopCh
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			next, err := s.read()
			if err != nil {
				continue
			}

			s.mu.Lock()
			changed := next != s.current
			s.current = next
			s.mu.Unlock()

			if !changed {
				continue
			}

			select {
			case s.changeCh <- next:
			case <-s.stopCh:
				return
			default:
			}
		}
	}
}

// read は加速度の支配軸から向きを判定する
func (s *IIOOrientationSource) read() (Orientation, error) {
	x, err := readRawValue(s.xPath)
	if err != nil {
		return OrientationUnknown, err
	}
	y, err := readRawValue(s.yPath)
	if err != nil {
		return OrientationUnknown, err
	}

	if abs(x) >= abs(y) {
		if x >= 0 {
			return OrientationLandscape, nil
		}
		return OrientationLandscapeFlip, nil
	}
	if y >= 0 {
		return OrientationPortrait, nil
	}
	return OrientationPortraitFlip, nil
}

// findAccelPaths は加速度センサーのsysfsパスを探す
func findAccelPaths() (string, string, error) {
	matches, err := filepath.Glob("/sys/bus/iio/devices/iio:device*/in_accel_x_raw")
	if err != nil || len(matches) == 0 {
		return "", "", fmt.Errorf("加速度センサーが見つかりません")
	}

	xPath := matches[0]
	yPath := filepath.Join(filepath.Dir(xPath), "in_accel_y_raw")
	if _, err := os.Stat(yPath); err != nil {
		return "", "", fmt.Errorf("加速度センサーのY軸が見つかりません: %w", err)
	}

	return xPath, yPath, nil
}

// readRawValue はsysfsから整数値を読み取る
func readRawValue(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// abs は整数の絶対値を返す
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MockOrientationSource はテスト用のOrientationSource実装
type MockOrientationSource struct {
	mu       sync.Mutex
	current  Orientation
	changeCh chan Orientation
	closed   bool
}

// NewMockOrientationSource は新しいMockOrientationSourceを作成する
func NewMockOrientationSource(initial Orientation) *MockOrientationSource {
	return &MockOrientationSource{
		current:  initial,
		changeCh: make(chan Orientation, 4),
	}
}

// Current は現在の向きを返す
func (m *MockOrientationSource) Current() Orientation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Changes は向きの変化通知チャンネルを返す
func (m *MockOrientationSource) Changes() <-chan Orientation {
	return m.changeCh
}

// Close はチャンネルを閉じる
func (m *MockOrientationSource) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.changeCh)
	}
}

// Rotate はテスト用に向きの変化を通知する
func (m *MockOrientationSource) Rotate(o Orientation) {
	m.mu.Lock()
	m.current = o
	closed := m.closed
	m.mu.Unlock()

	if !closed {
		m.changeCh <- o
	}
}

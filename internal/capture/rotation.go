package capture

import (
	"sync"

	"satsuei/internal/device"
)

// Orientation はデバイスの物理的な向きを表す
type Orientation string

const (
	OrientationLandscape     Orientation = "landscape"      // 横向き（自然な向き）
	OrientationPortrait      Orientation = "portrait"       // 縦向き
	OrientationLandscapeFlip Orientation = "landscape_flip" // 横向き（反転）
	OrientationPortraitFlip  Orientation = "portrait_flip"  // 縦向き（反転）
	OrientationUnknown       Orientation = "unknown"        // 判定不能
)

// degrees は向きを水平な記録結果に必要な回転角（度）へ変換する
func (o Orientation) degrees() int {
	switch o {
	case OrientationLandscape:
		return 0
	case OrientationPortrait:
		return 90
	case OrientationLandscapeFlip:
		return 180
	case OrientationPortraitFlip:
		return 270
	default:
		return 0
	}
}

// RotationAngle はプレビュー用と記録用の2つの回転角（度）を表す
// ビューファインダーとセンサーの自然な向きが一致しない場合、2つの角は異なる
type RotationAngle struct {
	Preview int // プレビュー表面を水平にする回転角
	Capture int // 記録結果を水平にする回転角
}

// OrientationSource はデバイスの物理的な向きの変化を通知する
type OrientationSource interface {
	// Current は現在の向きを返す
	Current() Orientation

	// Changes は向きの変化通知チャンネルを返す
	Changes() <-chan Orientation

	// Close は監視を停止しチャンネルを閉じる
	Close()
}

// RotationTracker は1つのデバイスに束縛され、向きの変化から
// プレビュー用・記録用の回転角を計算して通知する
// デバイスが切り替わったときは新しいトラッカーを作り直す
type RotationTracker struct {
	dev    device.Device
	src    OrientationSource
	offset int // センサーの取り付けオフセット（度）

	mu    sync.Mutex
	angle RotationAngle

	changeCh chan RotationAngle
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewRotationTracker は新しいRotationTrackerを作成し、向きの監視を開始する
func NewRotationTracker(dev device.Device, src OrientationSource) *RotationTracker {
	t := &RotationTracker{
		dev:      dev,
		src:      src,
		offset:   sensorMountOffset(dev),
		changeCh: make(chan RotationAngle, 4),
		stopCh:   make(chan struct{}),
	}

	t.angle = t.computeAngle(src.Current())

	t.wg.Add(1)
	go t.watch()

	return t
}

// Angle は現在の回転角を返す
func (t *RotationTracker) Angle() RotationAngle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.angle
}

// Changes は回転角の変化通知チャンネルを返す
// どちらかの角が変化したときのみ送信される
func (t *RotationTracker) Changes() <-chan RotationAngle {
	return t.changeCh
}

// Close は監視を停止し、向きの供給元ごとチャンネルを閉じる
func (t *RotationTracker) Close() {
	t.once.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
		t.src.Close()
		close(t.changeCh)
	})
}

// watch は向きの変化を受け取り、回転角の変化を通知する
func (t *RotationTracker) watch() {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			return
		case orientation, ok := <-t.src.Changes():
			if !ok {
				return
			}

			next := t.computeAngle(orientation)

			t.mu.Lock()
			changed := next != t.angle
			t.angle = next
			t.mu.Unlock()

			if !changed {
				continue
			}

			select {
			case t.changeCh <- next:
			case <-t.stopCh:
				return
			}
		}
	}
}

// computeAngle は向きから2つの回転角を計算する
func (t *RotationTracker) computeAngle(o Orientation) RotationAngle {
	capture := o.degrees()
	return RotationAngle{
		Preview: (capture + t.offset) % 360,
		Capture: capture,
	}
}

// sensorMountOffset はデバイスのセンサー取り付けオフセットを返す
// センサーの自然な向きが縦向き（縦長フォーマットが最大）のデバイスでは、
// ビューファインダーを水平にするために90度のオフセットが必要になる
func sensorMountOffset(dev device.Device) int {
	best, ok := dev.BestFormat()
	if !ok {
		return 0
	}
	if best.Height > best.Width {
		return 90
	}
	return 0
}

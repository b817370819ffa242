package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"satsuei/internal/device"
)

// StillOutput は静止画キャプチャ出力を表す
// 1つのStillEndpointを所有し、キャプチャ要求を結果に変換しながら
// 進行状況をアクティビティとして通知する
type StillOutput struct {
	endpoint StillEndpoint
	publish  func(Activity)

	mu       sync.Mutex
	dev      device.Device
	format   device.Format
	caps     Capabilities
	rotation int

	// 進行中キャプチャの計数
	// extendedCountは併録クリップの開始・完了エッジでのみ増減する参照カウント。
	// 重なり合うキャプチャでも外部から見えるフラグが明滅しないようにする
	activeCaptures int
	extendedCount  int
}

// stillResult はdelegateコールバックを待機側へ橋渡しする結果
type stillResult struct {
	data          []byte
	companionPath string
	err           error
}

// NewStillOutput は新しいStillOutputを作成する
// publishはアクティビティが変化するたびに呼ばれる
func NewStillOutput(endpoint StillEndpoint, publish func(Activity)) *StillOutput {
	if publish == nil {
		publish = func(Activity) {}
	}
	return &StillOutput{
		endpoint: endpoint,
		publish:  publish,
	}
}

// Mode はこの出力が対応する動作モードを返す
func (o *StillOutput) Mode() Mode {
	return ModeStill
}

// UpdateConfiguration は能力記述子を再計算し、
// 新しいデバイスが対応する最も高い設定をエンドポイントへ適用する
func (o *StillOutput) UpdateConfiguration(dev device.Device) error {
	best, ok := dev.BestFormat()
	if !ok {
		return fmt.Errorf("デバイス %s に利用可能なフォーマットがありません", dev.ID)
	}

	if err := o.endpoint.ApplyDevice(dev, best); err != nil {
		return fmt.Errorf("静止画エンドポイントの構成に失敗: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.dev = dev
	o.format = best
	o.caps = Capabilities{
		// 併録クリップは720p以上のフォーマットがあるデバイスでのみ有効
		SupportsExtendedCapture: best.Width >= 1280 && best.Height >= 720,
		MaxWidth:                best.Width,
		MaxHeight:               best.Height,
	}
	return nil
}

// SetRotationAngle は記録用回転角（度）を適用する
func (o *StillOutput) SetRotationAngle(degrees int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation = degrees
}

// Activity は現在のアクティビティを返す
func (o *StillOutput) Activity() Activity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activityLocked(false)
}

// Capabilities は現在の能力記述子を返す
func (o *StillOutput) Capabilities() Capabilities {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.caps
}

// Capture は静止画をキャプチャする
// エンドポイントの完了コールバックを待機し、結果または失敗を返す。
// 待機は呼び出し元のみをブロックし、他の操作を妨げない
func (o *StillOutput) Capture(ctx context.Context, features PhotoFeatures) (Photo, error) {
	o.mu.Lock()
	caps := o.caps
	format := o.format
	rotation := o.rotation
	o.mu.Unlock()

	companion := features.LiveCompanion && caps.SupportsExtendedCapture

	opts := StillOptions{
		Width:           format.Width,
		Height:          format.Height,
		CompanionClip:   companion,
		Proxy:           features.Proxy,
		RotationDegrees: rotation,
	}

	bridge := &stillBridge{
		output:   o,
		resultCh: make(chan stillResult, 1),
	}

	o.endpoint.Capture(ctx, opts, bridge)

	select {
	case res := <-bridge.resultCh:
		if res.err != nil {
			return Photo{}, fmt.Errorf("静止画キャプチャに失敗: %w", res.err)
		}
		if len(res.data) == 0 {
			return Photo{}, ErrNoData
		}
		return Photo{
			ID:            uuid.New().String(),
			Data:          res.data,
			Proxy:         features.Proxy,
			CompanionPath: res.companionPath,
		}, nil
	case <-ctx.Done():
		return Photo{}, ctx.Err()
	}
}

// activityLocked は現在の計数からアクティビティ値を組み立てる（ロック済み前提）
func (o *StillOutput) activityLocked(imminent bool) Activity {
	if o.activeCaptures == 0 && o.extendedCount == 0 {
		return Activity{Kind: ActivityIdle}
	}
	return Activity{
		Kind:               ActivityStill,
		WillFireImminently: imminent,
		IsExtendedCapture:  o.extendedCount > 0,
	}
}

// stillBridge はdelegateコールバックをアクティビティ更新と
// 一回限りの完了チャンネルへ橋渡しする
type stillBridge struct {
	output   *StillOutput
	resultCh chan stillResult

	mu                 sync.Mutex
	companionPath      string
	result             *stillResult
	companionRequested bool
	companionDone      bool
}

// WillBeginCapture はキャプチャ受理を通知する
func (b *stillBridge) WillBeginCapture() {
	o := b.output
	o.mu.Lock()
	o.activeCaptures++
	a := o.activityLocked(false)
	o.mu.Unlock()
	o.publish(a)
}

// WillCapturePhoto はシャッター直前を通知する
func (b *stillBridge) WillCapturePhoto() {
	o := b.output
	o.mu.Lock()
	a := o.activityLocked(true)
	o.mu.Unlock()
	o.publish(a)
}

// DidBeginCompanionClip は併録クリップの開始エッジで参照カウントを増やす
func (b *stillBridge) DidBeginCompanionClip() {
	b.mu.Lock()
	b.companionRequested = true
	b.mu.Unlock()

	o := b.output
	o.mu.Lock()
	o.extendedCount++
	a := o.activityLocked(false)
	o.mu.Unlock()
	o.publish(a)
}

// DidFinishCompanionClip は併録クリップの完了エッジで参照カウントを減らす
func (b *stillBridge) DidFinishCompanionClip(path string, err error) {
	o := b.output
	o.mu.Lock()
	if o.extendedCount > 0 {
		o.extendedCount--
	}
	a := o.activityLocked(false)
	o.mu.Unlock()
	o.publish(a)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.companionPath = path
	}
	b.companionDone = true

	// 本体の完了が先に届いている場合、併録パスを揃えて配送する
	b.deliverLocked()
}

// DidFinishCapture はキャプチャ完了を通知する
func (b *stillBridge) DidFinishCapture(data []byte, err error) {
	o := b.output
	o.mu.Lock()
	if o.activeCaptures > 0 {
		o.activeCaptures--
	}
	a := o.activityLocked(false)
	o.mu.Unlock()
	o.publish(a)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = &stillResult{data: data, err: err}
	b.deliverLocked()
}

// deliverLocked は結果を一度だけ待機側へ配送する（ロック済み前提）
// 併録クリップが記録されている場合は、その完了を待ってから配送する
func (b *stillBridge) deliverLocked() {
	if b.result == nil {
		return
	}
	if b.companionRequested && !b.companionDone && b.result.err == nil {
		return
	}

	res := *b.result
	res.companionPath = b.companionPath

	select {
	case b.resultCh <- res:
	default:
		// 既に配送済み
	}
}

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"satsuei/internal/device"
)

// MotionOutput は動画記録出力を表す
// 1つのClipEndpointを所有し、記録中は経過時間をアクティビティとして通知する
type MotionOutput struct {
	endpoint ClipEndpoint
	publish  func(Activity)

	mu        sync.Mutex
	dev       device.Device
	format    device.Format
	caps      Capabilities
	rotation  int
	hdr       bool
	audioPath string

	recording bool
	startedAt time.Time
	resultCh  chan clipResult
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// clipResult はdelegateコールバックを待機側へ橋渡しする結果
type clipResult struct {
	path string
	err  error
}

// NewMotionOutput は新しいMotionOutputを作成する
func NewMotionOutput(endpoint ClipEndpoint, publish func(Activity)) *MotionOutput {
	if publish == nil {
		publish = func(Activity) {}
	}
	return &MotionOutput{
		endpoint: endpoint,
		publish:  publish,
	}
}

// Mode はこの出力が対応する動作モードを返す
func (o *MotionOutput) Mode() Mode {
	return ModeMotion
}

// UpdateConfiguration は能力記述子を再計算し、
// 新しいデバイスが対応する最も高い設定をエンドポイントへ適用する
// HDRが有効な場合は10bit対応フォーマットを優先する
func (o *MotionOutput) UpdateConfiguration(dev device.Device) error {
	o.mu.Lock()
	hdr := o.hdr
	o.mu.Unlock()

	format, ok := dev.BestFormat()
	if !ok {
		return fmt.Errorf("デバイス %s に利用可能なフォーマットがありません", dev.ID)
	}

	_, hasTenBit := dev.BestTenBitFormat()
	if hdr && hasTenBit {
		format, _ = dev.BestTenBitFormat()
	}

	if err := o.endpoint.ApplyDevice(dev, format); err != nil {
		return fmt.Errorf("動画エンドポイントの構成に失敗: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.dev = dev
	o.format = format
	// 10bitフォーマットが無い場合、HDRは実効的に無効へ戻る
	if !hasTenBit {
		o.hdr = false
	}
	o.caps = Capabilities{
		SupportsHDR: hasTenBit,
		MaxWidth:    format.Width,
		MaxHeight:   format.Height,
	}
	return nil
}

// SetRotationAngle は記録用回転角（度）を適用する
func (o *MotionOutput) SetRotationAngle(degrees int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation = degrees
}

// SetAudioPath は記録に使用するオーディオデバイスパスを設定する
func (o *MotionOutput) SetAudioPath(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audioPath = path
}

// SetHDR は10bit HDR記録の有効・無効を切り替える
// デバイスが10bitフォーマットを持たない場合は標準フォーマットのまま
// falseを返す（実効状態）
func (o *MotionOutput) SetHDR(enabled bool) (bool, error) {
	o.mu.Lock()
	if o.recording {
		o.mu.Unlock()
		return o.hdr, fmt.Errorf("記録中はHDRを変更できません")
	}
	dev := o.dev
	o.hdr = enabled
	o.mu.Unlock()

	if dev.ID == "" {
		return false, fmt.Errorf("デバイスが構成されていません")
	}

	if err := o.UpdateConfiguration(dev); err != nil {
		return false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hdr, nil
}

// HDREnabled は実効的なHDR状態を返す
func (o *MotionOutput) HDREnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hdr
}

// Activity は現在のアクティビティを返す
func (o *MotionOutput) Activity() Activity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activityLocked()
}

// Capabilities は現在の能力記述子を返す
func (o *MotionOutput) Capabilities() Capabilities {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.caps
}

// StartRecording は動画記録を開始する（fire-and-forget）
func (o *MotionOutput) StartRecording(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.recording {
		return fmt.Errorf("記録は既に開始されています")
	}

	resultCh := make(chan clipResult, 1)
	bridge := &clipBridge{resultCh: resultCh}

	opts := ClipOptions{
		Width:           o.format.Width,
		Height:          o.format.Height,
		FPS:             o.format.FPS,
		TenBit:          o.hdr && o.format.TenBit,
		AudioPath:       o.audioPath,
		RotationDegrees: o.rotation,
	}

	if err := o.endpoint.StartRecording(ctx, opts, bridge); err != nil {
		return fmt.Errorf("記録の開始に失敗: %w", err)
	}

	o.recording = true
	o.startedAt = time.Now()
	o.resultCh = resultCh
	o.stopCh = make(chan struct{})

	// 経過時間の通知ゴルーチンを開始
	o.wg.Add(1)
	go o.tickElapsed(o.stopCh, o.startedAt)

	o.publish(o.activityLocked())
	return nil
}

// StopRecording は記録を停止し、結果を待って返す
// 待機は呼び出し元のみをブロックし、他の操作を妨げない
func (o *MotionOutput) StopRecording(ctx context.Context) (Clip, error) {
	o.mu.Lock()
	if !o.recording {
		o.mu.Unlock()
		return Clip{}, fmt.Errorf("記録が開始されていません")
	}

	resultCh := o.resultCh
	startedAt := o.startedAt
	close(o.stopCh)
	o.recording = false
	o.resultCh = nil

	if err := o.endpoint.StopRecording(ctx); err != nil {
		o.mu.Unlock()
		o.publish(Activity{Kind: ActivityIdle})
		return Clip{}, fmt.Errorf("記録の停止に失敗: %w", err)
	}
	o.mu.Unlock()

	o.wg.Wait()

	// エンドポイントの完了コールバックを待機する（ロックの外）
	select {
	case res := <-resultCh:
		o.publish(Activity{Kind: ActivityIdle})
		if res.err != nil {
			return Clip{}, fmt.Errorf("動画記録に失敗: %w", res.err)
		}
		return Clip{
			ID:       uuid.New().String(),
			Path:     res.path,
			Duration: time.Since(startedAt),
		}, nil
	case <-ctx.Done():
		o.publish(Activity{Kind: ActivityIdle})
		return Clip{}, ctx.Err()
	}
}

// Recording は記録中かどうかを返す
func (o *MotionOutput) Recording() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recording
}

// activityLocked は現在の状態からアクティビティ値を組み立てる（ロック済み前提）
func (o *MotionOutput) activityLocked() Activity {
	if !o.recording {
		return Activity{Kind: ActivityIdle}
	}
	return Activity{
		Kind:    ActivityMotion,
		Elapsed: time.Since(o.startedAt),
	}
}

// tickElapsed は記録中、1秒ごとに経過時間を通知する
func (o *MotionOutput) tickElapsed(stopCh <-chan struct{}, startedAt time.Time) {
	defer o.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			o.publish(Activity{
				Kind:    ActivityMotion,
				Elapsed: time.Since(startedAt),
			})
		}
	}
}

// clipBridge はdelegateコールバックを一回限りの完了チャンネルへ橋渡しする
type clipBridge struct {
	resultCh chan clipResult
}

// DidFinishRecording は記録完了を待機側へ配送する
func (b *clipBridge) DidFinishRecording(path string, err error) {
	select {
	case b.resultCh <- clipResult{path: path, err: err}:
	default:
	}
}

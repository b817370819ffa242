package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"satsuei/internal/device"
	"satsuei/internal/prefs"
)

// testRig はマネージャーテスト用の依存一式
type testRig struct {
	lookup     *device.MockLookup
	authorizer *MockAuthorizer
	prefs      *prefs.MemoryStore
	still      *MockStillEndpoint
	clip       *MockClipEndpoint
	controller *MockController
	interrupts *MockInterruptionSource
	manager    *DefaultManager

	mu           sync.Mutex
	orientations []*MockOrientationSource
}

// newTestRig はモック一式で構成されたDefaultManagerを作成する
func newTestRig(videoCount int) *testRig {
	rig := &testRig{
		lookup:     device.NewMockLookup(videoCount),
		authorizer: NewMockAuthorizer(true),
		prefs:      prefs.NewMemoryStore(),
		still:      NewMockStillEndpoint(),
		clip:       NewMockClipEndpoint(),
		controller: NewMockController(),
		interrupts: NewMockInterruptionSource(),
	}

	rig.manager = NewDefaultManager(Deps{
		Lookup:        rig.lookup,
		Authorizer:    rig.authorizer,
		Prefs:         rig.prefs,
		StillEndpoint: rig.still,
		ClipEndpoint:  rig.clip,
		Controller:    rig.controller,
		Interruptions: rig.interrupts,
		OrientationSource: func(device.Device) OrientationSource {
			src := NewMockOrientationSource(OrientationLandscape)
			rig.mu.Lock()
			rig.orientations = append(rig.orientations, src)
			rig.mu.Unlock()
			return src
		},
	})

	return rig
}

// latestOrientation は最後に作られた向き供給元を返す
func (r *testRig) latestOrientation() *MockOrientationSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.orientations) == 0 {
		return nil
	}
	return r.orientations[len(r.orientations)-1]
}

// waitFor は条件が満たされるまでポーリングする
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("条件が満たされませんでした: %s", message)
}

// TestManagerStartAndStop はセッションの開始と停止をテストする
func TestManagerStartAndStop(t *testing.T) {
	rig := newTestRig(2)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}

	if got := rig.manager.Status(); got != StatusRunning {
		t.Errorf("開始後の状態が一致しません: got %s, want %s", got, StatusRunning)
	}
	if got := rig.manager.CurrentMode(); got != ModeStill {
		t.Errorf("モードが一致しません: got %s, want %s", got, ModeStill)
	}

	dev, ok := rig.manager.ActiveDevice()
	if !ok {
		t.Fatal("アクティブデバイスが設定されていません")
	}
	if dev.ID != "video-0" {
		t.Errorf("アクティブデバイスが一致しません: got %s, want video-0", dev.ID)
	}

	if err := rig.manager.Stop(ctx); err != nil {
		t.Fatalf("セッションの停止に失敗しました: %v", err)
	}
	if got := rig.manager.Status(); got != StatusStopped {
		t.Errorf("停止後の状態が一致しません: got %s, want %s", got, StatusStopped)
	}
}

// TestManagerStartIdempotent は開始の冪等性をテストする
func TestManagerStartIdempotent(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("1回目の開始に失敗しました: %v", err)
	}
	if err := rig.manager.Start(ctx, ModeMotion, false); err != nil {
		t.Fatalf("2回目の開始はエラーにすべきではありません: %v", err)
	}

	// 動作中の再開始はモードを変えない
	if got := rig.manager.CurrentMode(); got != ModeStill {
		t.Errorf("動作中の再開始でモードが変わりました: got %s", got)
	}

	_ = rig.manager.Stop(ctx)
}

// TestManagerStartUnauthorized は権限拒否時の開始をテストする
func TestManagerStartUnauthorized(t *testing.T) {
	rig := newTestRig(1)
	rig.authorizer.SetAllowed(false)
	ctx := context.Background()

	err := rig.manager.Start(ctx, ModeStill, false)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ErrUnauthorizedが期待されましたが: %v", err)
	}
	if got := rig.manager.Status(); got != StatusStopped {
		t.Errorf("権限拒否後の状態が一致しません: got %s, want %s", got, StatusStopped)
	}

	// 権限が付与されれば開始できる
	rig.authorizer.SetAllowed(true)
	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("権限付与後の開始に失敗しました: %v", err)
	}
	_ = rig.manager.Stop(ctx)
}

// TestManagerStartNoDevices はデバイス無しでの開始をテストする
func TestManagerStartNoDevices(t *testing.T) {
	rig := newTestRig(0)
	ctx := context.Background()

	err := rig.manager.Start(ctx, ModeStill, false)
	if !errors.Is(err, ErrSetupFailed) {
		t.Fatalf("ErrSetupFailedが期待されましたが: %v", err)
	}
	if got := rig.manager.Status(); got != StatusFailed {
		t.Errorf("失敗後の状態が一致しません: got %s, want %s", got, StatusFailed)
	}
}

// TestManagerStartDefaultMode は空モード開始時のフォールバックをテストする
func TestManagerStartDefaultMode(t *testing.T) {
	rig := newTestRig(1)
	rig.manager.deps.DefaultMode = ModeMotion
	ctx := context.Background()

	// 保存された設定が無ければ構成のデフォルトモードで開始する
	if err := rig.manager.Start(ctx, "", false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	if got := rig.manager.CurrentMode(); got != ModeMotion {
		t.Errorf("モードが一致しません: got %s, want %s", got, ModeMotion)
	}
	if err := rig.manager.Stop(ctx); err != nil {
		t.Fatalf("セッションの停止に失敗しました: %v", err)
	}

	// 保存された設定があればそちらが優先される
	if err := rig.prefs.Save(prefs.Preferences{Mode: string(ModeStill)}); err != nil {
		t.Fatalf("設定の保存に失敗しました: %v", err)
	}
	if err := rig.manager.Start(ctx, "", false); err != nil {
		t.Fatalf("再開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()
	if got := rig.manager.CurrentMode(); got != ModeStill {
		t.Errorf("保存された設定が優先されていません: got %s, want %s", got, ModeStill)
	}
}

// TestManagerStartUsesDefaultVideoDevice は既定デバイスでの開始をテストする
func TestManagerStartUsesDefaultVideoDevice(t *testing.T) {
	rig := newTestRig(3)
	rig.lookup.SetDefaultVideoDevice("video-1")
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	dev, ok := rig.manager.ActiveDevice()
	if !ok {
		t.Fatal("アクティブデバイスが設定されていません")
	}
	if dev.ID != "video-1" {
		t.Errorf("既定デバイスで開始されていません: got %s, want video-1", dev.ID)
	}
}

// TestManagerSetMode はモード切り替えをテストする
func TestManagerSetMode(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	if err := rig.manager.SetMode(ctx, ModeMotion); err != nil {
		t.Fatalf("動画モードへの切り替えに失敗しました: %v", err)
	}
	if got := rig.manager.CurrentMode(); got != ModeMotion {
		t.Errorf("モードが一致しません: got %s, want %s", got, ModeMotion)
	}

	// 動画モードでは静止画キャプチャは拒否される
	if _, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{}); err == nil {
		t.Error("動画モードでの静止画キャプチャはエラーにすべきです")
	}

	// 同一モードへの切り替えは無操作
	if err := rig.manager.SetMode(ctx, ModeMotion); err != nil {
		t.Errorf("同一モードへの切り替えはエラーにすべきではありません: %v", err)
	}

	if err := rig.manager.SetMode(ctx, ModeStill); err != nil {
		t.Fatalf("静止画モードへの復帰に失敗しました: %v", err)
	}
}

// TestManagerSetModeNotRunning は停止中のモード切り替えをテストする
func TestManagerSetModeNotRunning(t *testing.T) {
	rig := newTestRig(1)

	err := rig.manager.SetMode(context.Background(), ModeMotion)
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("ErrNotRunningが期待されましたが: %v", err)
	}
}

// TestManagerSetModeFailureKeepsSession は出力接続失敗時の復旧をテストする
func TestManagerSetModeFailureKeepsSession(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	// 動画エンドポイントの構成を失敗させる
	rig.clip.SetShouldFailApply(true)

	err := rig.manager.SetMode(ctx, ModeMotion)
	if !errors.Is(err, ErrAddOutputFailed) {
		t.Fatalf("ErrAddOutputFailedが期待されましたが: %v", err)
	}

	// 失敗してもセッションは静止画モードのまま動作を続ける
	if got := rig.manager.Status(); got != StatusRunning {
		t.Errorf("失敗後も動作中であるべきです: got %s", got)
	}
	if got := rig.manager.CurrentMode(); got != ModeStill {
		t.Errorf("失敗後のモードが一致しません: got %s, want %s", got, ModeStill)
	}
	if _, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{}); err != nil {
		t.Errorf("失敗後の静止画キャプチャに失敗しました: %v", err)
	}
}

// TestManagerNextDeviceCycles はデバイスの巡回をテストする
func TestManagerNextDeviceCycles(t *testing.T) {
	rig := newTestRig(3)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	expected := []string{"video-1", "video-2", "video-0"}
	for _, want := range expected {
		if err := rig.manager.NextDevice(ctx); err != nil {
			t.Fatalf("デバイスの切り替えに失敗しました: %v", err)
		}
		dev, _ := rig.manager.ActiveDevice()
		if dev.ID != want {
			t.Errorf("アクティブデバイスが一致しません: got %s, want %s", dev.ID, want)
		}
	}
}

// TestManagerSwitchDeviceFailureReverts はデバイス切り替え失敗時の復旧をテストする
func TestManagerSwitchDeviceFailureReverts(t *testing.T) {
	rig := newTestRig(2)

	// video-1への接続だけを失敗させる
	rig.manager.deps.Probe = func(_ context.Context, dev device.Device) error {
		if dev.ID == "video-1" {
			return errors.New("デバイスが応答しません")
		}
		return nil
	}

	ctx := context.Background()
	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	err := rig.manager.NextDevice(ctx)
	if !errors.Is(err, ErrDeviceChangeFailed) {
		t.Fatalf("ErrDeviceChangeFailedが期待されましたが: %v", err)
	}

	// 元のデバイスのまま動作を続ける
	dev, _ := rig.manager.ActiveDevice()
	if dev.ID != "video-0" {
		t.Errorf("失敗後は元のデバイスに戻るべきです: got %s", dev.ID)
	}
	if got := rig.manager.Status(); got != StatusRunning {
		t.Errorf("失敗後も動作中であるべきです: got %s", got)
	}
	if _, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{}); err != nil {
		t.Errorf("失敗後の静止画キャプチャに失敗しました: %v", err)
	}
}

// TestManagerCapturePhoto は静止画キャプチャをテストする
func TestManagerCapturePhoto(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	photo, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{})
	if err != nil {
		t.Fatalf("静止画キャプチャに失敗しました: %v", err)
	}
	if photo.ID == "" {
		t.Error("キャプチャIDが空です")
	}
	if len(photo.Data) == 0 {
		t.Error("画像データが空です")
	}
	if photo.CompanionPath != "" {
		t.Error("併録を要求していないのに併録パスが設定されています")
	}
}

// TestManagerCapturePhotoWithCompanion は併録クリップ付きキャプチャをテストする
func TestManagerCapturePhotoWithCompanion(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	caps := rig.manager.Capabilities()
	if !caps.SupportsExtendedCapture {
		t.Fatal("テストデバイスは併録キャプチャに対応しているべきです")
	}

	photo, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{LiveCompanion: true})
	if err != nil {
		t.Fatalf("併録キャプチャに失敗しました: %v", err)
	}
	if photo.CompanionPath == "" {
		t.Error("併録クリップのパスが設定されていません")
	}
}

// TestManagerOverlappingExtendedCaptures は重なり合う併録キャプチャの
// 参照カウントをテストする
// 1つ目の併録が完了しても、2つ目が進行中なら拡張キャプチャの
// フラグは立ったままでなければならない
func TestManagerOverlappingExtendedCaptures(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	rig.still.HoldCompanions()

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{LiveCompanion: true})
			results <- err
		}()
	}

	// 両方の併録クリップが始まるまで待つ
	waitFor(t, 2*time.Second, func() bool {
		a := rig.manager.Activity()
		return a.Kind == ActivityStill && a.IsExtendedCapture
	}, "併録キャプチャの開始")

	// 1つ目を完了させても、2つ目が進行中ならフラグは立ったまま
	rig.still.ReleaseCompanion()
	if err := <-results; err != nil {
		t.Fatalf("1つ目のキャプチャに失敗しました: %v", err)
	}

	a := rig.manager.Activity()
	if !a.IsExtendedCapture {
		t.Error("2つ目の併録が進行中なのにフラグが下りています")
	}

	// 2つ目も完了させるとアイドルへ戻る
	rig.still.ReleaseCompanion()
	if err := <-results; err != nil {
		t.Fatalf("2つ目のキャプチャに失敗しました: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return rig.manager.Activity().Kind == ActivityIdle
	}, "アイドルへの復帰")
}

// TestManagerCapturePhotoNoData はデータ無し完了をテストする
func TestManagerCapturePhotoNoData(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	rig.still.SetNoData(true)

	_, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("ErrNoDataが期待されましたが: %v", err)
	}
}

// TestManagerRecordingLifecycle は動画記録の開始と停止をテストする
func TestManagerRecordingLifecycle(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeMotion, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	if err := rig.manager.StartRecording(ctx); err != nil {
		t.Fatalf("記録の開始に失敗しました: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return rig.manager.Activity().Kind == ActivityMotion
	}, "記録アクティビティの反映")

	clip, err := rig.manager.StopRecording(ctx)
	if err != nil {
		t.Fatalf("記録の停止に失敗しました: %v", err)
	}
	if clip.Path == "" {
		t.Error("クリップのパスが空です")
	}
	if clip.ID == "" {
		t.Error("クリップのIDが空です")
	}

	if got := rig.manager.Activity().Kind; got != ActivityIdle {
		t.Errorf("停止後のアクティビティが一致しません: got %s", got)
	}
}

// TestManagerRecordingWrongMode は静止画モードでの記録開始をテストする
func TestManagerRecordingWrongMode(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	if err := rig.manager.StartRecording(ctx); err == nil {
		t.Error("静止画モードでの記録開始はエラーにすべきです")
	}
}

// TestManagerSetHDR はHDR切り替えをテストする
func TestManagerSetHDR(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeMotion, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	// video-0は10bitフォーマットに対応している
	effective, err := rig.manager.SetHDR(ctx, true)
	if err != nil {
		t.Fatalf("HDRの有効化に失敗しました: %v", err)
	}
	if !effective {
		t.Error("10bit対応デバイスでHDRが有効になりませんでした")
	}

	effective, err = rig.manager.SetHDR(ctx, false)
	if err != nil {
		t.Fatalf("HDRの無効化に失敗しました: %v", err)
	}
	if effective {
		t.Error("HDRが無効になりませんでした")
	}
}

// TestManagerSetHDRUnsupportedDevice は10bit非対応デバイスでのHDRをテストする
func TestManagerSetHDRUnsupportedDevice(t *testing.T) {
	rig := newTestRig(2)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeMotion, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	// video-1は10bit非対応
	if err := rig.manager.NextDevice(ctx); err != nil {
		t.Fatalf("デバイスの切り替えに失敗しました: %v", err)
	}

	// 希望がtrueでも実効状態はfalseのまま
	effective, err := rig.manager.SetHDR(ctx, true)
	if err != nil {
		t.Fatalf("SetHDRに失敗しました: %v", err)
	}
	if effective {
		t.Error("10bit非対応デバイスでHDRが有効になっています")
	}
}

// TestManagerSetHDRStillMode は静止画モードでのHDR切り替えをテストする
func TestManagerSetHDRStillMode(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	if _, err := rig.manager.SetHDR(ctx, true); err == nil {
		t.Error("静止画モードでのHDR切り替えはエラーにすべきです")
	}

	// 静止画モードの能力記述子はHDR非対応を示す
	if rig.manager.Capabilities().SupportsHDR {
		t.Error("静止画モードでSupportsHDRが立っています")
	}
}

// TestManagerFocusAndExpose はフォーカス・露出の調整をテストする
func TestManagerFocusAndExpose(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	rig.manager.FocusAndExpose(ctx, Point{X: 0.3, Y: 0.7}, true)

	applied := rig.controller.Applied()
	if len(applied) != 1 {
		t.Fatalf("制御設定の適用回数が一致しません: got %d, want 1", len(applied))
	}
	if !applied[0].OneShot {
		t.Error("ユーザー起点の調整はOneShotであるべきです")
	}
	if applied[0].FocusPoint == nil || applied[0].FocusPoint.X != 0.3 {
		t.Error("フォーカス位置が渡されていません")
	}

	// デバイスをロックできなくても表面化しない
	rig.controller.SetLockError(errors.New("デバイスが使用中です"))
	rig.manager.FocusAndExpose(ctx, Point{X: 0.5, Y: 0.5}, true)
	if got := rig.manager.Status(); got != StatusRunning {
		t.Errorf("調整失敗後も動作中であるべきです: got %s", got)
	}
}

// TestManagerInterruption は割り込みの開始と終了をテストする
func TestManagerInterruption(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	// 無害な理由の割り込みは無視される
	rig.interrupts.Send(InterruptionEvent{Kind: InterruptionBegan, Reason: ReasonSuspended})
	time.Sleep(50 * time.Millisecond)
	if rig.manager.IsInterrupted() {
		t.Error("無害な割り込みで割り込み状態に入っています")
	}

	// リソース競合の割り込みは状態に反映される
	rig.interrupts.Send(InterruptionEvent{Kind: InterruptionBegan, Reason: ReasonDeviceInUse})
	waitFor(t, 2*time.Second, func() bool {
		return rig.manager.IsInterrupted()
	}, "割り込み状態への遷移")

	if got := rig.manager.Status(); got != StatusInterrupted {
		t.Errorf("割り込み中の状態が一致しません: got %s", got)
	}

	rig.interrupts.Send(InterruptionEvent{Kind: InterruptionEnded})
	waitFor(t, 2*time.Second, func() bool {
		return !rig.manager.IsInterrupted()
	}, "割り込みからの復帰")

	if got := rig.manager.Status(); got != StatusRunning {
		t.Errorf("復帰後の状態が一致しません: got %s", got)
	}
}

// TestManagerRuntimeErrorRestart は実行時エラーからの自動再開をテストする
func TestManagerRuntimeErrorRestart(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	rig.interrupts.Send(InterruptionEvent{Kind: RuntimeError, Err: errors.New("パイプラインが停止しました")})

	waitFor(t, 2*time.Second, func() bool {
		return rig.manager.RestartCount() == 1
	}, "自動再開")

	if got := rig.manager.Status(); got != StatusRunning {
		t.Errorf("再開後の状態が一致しません: got %s", got)
	}
	if _, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{}); err != nil {
		t.Errorf("再開後の静止画キャプチャに失敗しました: %v", err)
	}
}

// TestManagerPreferredDeviceSwitch は優先デバイス変更への追従をテストする
func TestManagerPreferredDeviceSwitch(t *testing.T) {
	rig := newTestRig(2)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	devices, _ := rig.lookup.VideoDevices(ctx)
	rig.lookup.Nominate(devices[1])

	waitFor(t, 2*time.Second, func() bool {
		dev, _ := rig.manager.ActiveDevice()
		return dev.ID == "video-1"
	}, "優先デバイスへの切り替え")
}

// TestManagerPrefsPersistence は設定の保存と復元をテストする
func TestManagerPrefsPersistence(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	if err := rig.manager.SetMode(ctx, ModeMotion); err != nil {
		t.Fatalf("モードの切り替えに失敗しました: %v", err)
	}
	if err := rig.manager.Stop(ctx); err != nil {
		t.Fatalf("セッションの停止に失敗しました: %v", err)
	}

	if rig.prefs.SaveCount() == 0 {
		t.Fatal("設定が保存されていません")
	}

	// 同じ設定ストアで作り直したマネージャーはモードを復元する
	second := NewDefaultManager(Deps{
		Lookup:        rig.lookup,
		Authorizer:    NewMockAuthorizer(true),
		Prefs:         rig.prefs,
		StillEndpoint: NewMockStillEndpoint(),
		ClipEndpoint:  NewMockClipEndpoint(),
		Controller:    NewMockController(),
		Interruptions: NewMockInterruptionSource(),
		OrientationSource: func(device.Device) OrientationSource {
			return NewMockOrientationSource(OrientationLandscape)
		},
	})

	if err := second.Start(ctx, "", false); err != nil {
		t.Fatalf("2つ目のマネージャーの開始に失敗しました: %v", err)
	}
	defer func() { _ = second.Stop(ctx) }()

	if got := second.CurrentMode(); got != ModeMotion {
		t.Errorf("保存されたモードが復元されていません: got %s, want %s", got, ModeMotion)
	}
}

// TestManagerRotationEvents は向きの変化に伴う回転イベントをテストする
func TestManagerRotationEvents(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	events, cancel := rig.manager.Subscribe()
	defer cancel()

	src := rig.latestOrientation()
	if src == nil {
		t.Fatal("向きの供給元が作成されていません")
	}
	src.Rotate(OrientationPortrait)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == EventRotation && e.PreviewAngle == 90 {
				return
			}
		case <-deadline:
			t.Fatal("回転イベントが届きませんでした")
		}
	}
}

// TestManagerRotationResetOnDeviceSwitch は切り替え直後の回転基準をテストする
func TestManagerRotationResetOnDeviceSwitch(t *testing.T) {
	rig := newTestRig(2)
	ctx := context.Background()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	events, cancel := rig.manager.Subscribe()
	defer cancel()

	oldSrc := rig.latestOrientation()
	if oldSrc == nil {
		t.Fatal("向きの供給元が作成されていません")
	}

	// 切り替え処理の最中に旧デバイスの向きが変化する
	rig.manager.deps.Probe = func(_ context.Context, _ device.Device) error {
		oldSrc.Rotate(OrientationPortrait)
		// 旧トラッカーのイベントが転送待ちになるまで待つ
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	if err := rig.manager.NextDevice(ctx); err != nil {
		t.Fatalf("デバイスの切り替えに失敗しました: %v", err)
	}

	// 最終的な回転角は新しいデバイスの向き（横向き=0度）になり、
	// 旧トラッカーに残っていた90度が後から適用されることは無い
	last := -1
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case e := <-events:
			if e.Kind == EventRotation {
				last = e.PreviewAngle
			}
		case <-deadline:
			done = true
		}
	}
	if last != 0 {
		t.Errorf("切り替え後の回転角が一致しません: got %d, want 0", last)
	}
}

// TestManagerEventStream は統合イベントの配信をテストする
func TestManagerEventStream(t *testing.T) {
	rig := newTestRig(1)
	ctx := context.Background()

	events, cancel := rig.manager.Subscribe()
	defer cancel()

	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	defer func() { _ = rig.manager.Stop(ctx) }()

	// 開始に伴い状態イベントが配信される
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == EventStatus && e.Status == StatusRunning {
				return
			}
		case <-deadline:
			t.Fatal("状態イベントが届きませんでした")
		}
	}
}

// TestManagerFullScenario は開始から停止までの一連の操作をテストする
func TestManagerFullScenario(t *testing.T) {
	rig := newTestRig(2)
	ctx := context.Background()

	// 開始して静止画をキャプチャ
	if err := rig.manager.Start(ctx, ModeStill, false); err != nil {
		t.Fatalf("セッションの開始に失敗しました: %v", err)
	}
	if _, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{LiveCompanion: true}); err != nil {
		t.Fatalf("静止画キャプチャに失敗しました: %v", err)
	}

	// デバイスを切り替えてもう1枚
	if err := rig.manager.NextDevice(ctx); err != nil {
		t.Fatalf("デバイスの切り替えに失敗しました: %v", err)
	}
	if _, err := rig.manager.CapturePhoto(ctx, PhotoFeatures{}); err != nil {
		t.Fatalf("切り替え後のキャプチャに失敗しました: %v", err)
	}

	// 動画モードで記録
	if err := rig.manager.SetMode(ctx, ModeMotion); err != nil {
		t.Fatalf("動画モードへの切り替えに失敗しました: %v", err)
	}
	if err := rig.manager.StartRecording(ctx); err != nil {
		t.Fatalf("記録の開始に失敗しました: %v", err)
	}

	// 記録中に割り込みが入っても復帰できる
	rig.interrupts.Send(InterruptionEvent{Kind: InterruptionBegan, Reason: ReasonDeviceInUse})
	waitFor(t, 2*time.Second, func() bool {
		return rig.manager.IsInterrupted()
	}, "割り込み状態への遷移")
	rig.interrupts.Send(InterruptionEvent{Kind: InterruptionEnded})
	waitFor(t, 2*time.Second, func() bool {
		return !rig.manager.IsInterrupted()
	}, "割り込みからの復帰")

	clip, err := rig.manager.StopRecording(ctx)
	if err != nil {
		t.Fatalf("記録の停止に失敗しました: %v", err)
	}
	if clip.Path == "" {
		t.Error("クリップのパスが空です")
	}

	if err := rig.manager.Stop(ctx); err != nil {
		t.Fatalf("セッションの停止に失敗しました: %v", err)
	}
	if got := rig.manager.Status(); got != StatusStopped {
		t.Errorf("停止後の状態が一致しません: got %s", got)
	}
}

package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"satsuei/internal/device"
)

// newTestStillOutput は構成済みのStillOutputとエンドポイントを返す
func newTestStillOutput(t *testing.T) (*StillOutput, *MockStillEndpoint, *[]Activity, *sync.Mutex) {
	t.Helper()

	endpoint := NewMockStillEndpoint()

	var mu sync.Mutex
	var published []Activity
	output := NewStillOutput(endpoint, func(a Activity) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, a)
	})

	dev := device.Device{
		ID:   "video-0",
		Kind: device.KindVideo,
		Path: "/dev/video0",
		Formats: []device.Format{
			{Width: 1920, Height: 1080, FPS: 30},
		},
	}
	if err := output.UpdateConfiguration(dev); err != nil {
		t.Fatalf("出力の構成に失敗しました: %v", err)
	}

	return output, endpoint, &published, &mu
}

// TestStillOutputCapture は基本的なキャプチャをテストする
func TestStillOutputCapture(t *testing.T) {
	output, _, _, _ := newTestStillOutput(t)

	photo, err := output.Capture(context.Background(), PhotoFeatures{})
	if err != nil {
		t.Fatalf("キャプチャに失敗しました: %v", err)
	}
	if len(photo.Data) == 0 {
		t.Error("画像データが空です")
	}
	if photo.ID == "" {
		t.Error("キャプチャIDが空です")
	}
}

// TestStillOutputCaptureError はエンドポイント失敗時の挙動をテストする
func TestStillOutputCaptureError(t *testing.T) {
	output, endpoint, _, _ := newTestStillOutput(t)

	wantErr := errors.New("センサーの読み出しに失敗")
	endpoint.SetCaptureError(wantErr)

	_, err := output.Capture(context.Background(), PhotoFeatures{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("エンドポイントのエラーが伝播していません: %v", err)
	}

	// 失敗後はアイドルへ戻る
	if got := output.Activity().Kind; got != ActivityIdle {
		t.Errorf("失敗後のアクティビティが一致しません: got %s", got)
	}
}

// TestStillOutputCaptureNoData はデータ無し完了をテストする
func TestStillOutputCaptureNoData(t *testing.T) {
	output, endpoint, _, _ := newTestStillOutput(t)

	endpoint.SetNoData(true)

	_, err := output.Capture(context.Background(), PhotoFeatures{})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("ErrNoDataが期待されましたが: %v", err)
	}
}

// TestStillOutputCompanionDelivery は併録クリップ完了後の結果配送をテストする
// 本体の画像が先に仕上がっても、併録クリップの完了を待ってから
// パスを揃えて返す
func TestStillOutputCompanionDelivery(t *testing.T) {
	output, endpoint, _, _ := newTestStillOutput(t)

	endpoint.HoldCompanions()

	resultCh := make(chan Photo, 1)
	errCh := make(chan error, 1)
	go func() {
		photo, err := output.Capture(context.Background(), PhotoFeatures{LiveCompanion: true})
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- photo
	}()

	// 併録が完了するまで結果は返らない
	select {
	case <-resultCh:
		t.Fatal("併録の完了前に結果が返りました")
	case err := <-errCh:
		t.Fatalf("キャプチャに失敗しました: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	endpoint.ReleaseCompanion()

	select {
	case photo := <-resultCh:
		if photo.CompanionPath == "" {
			t.Error("併録クリップのパスが設定されていません")
		}
	case err := <-errCh:
		t.Fatalf("キャプチャに失敗しました: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("キャプチャがタイムアウトしました")
	}
}

// TestStillOutputCapabilities は能力記述子の再計算をテストする
func TestStillOutputCapabilities(t *testing.T) {
	endpoint := NewMockStillEndpoint()
	output := NewStillOutput(endpoint, nil)

	// 720p未満のデバイスは併録キャプチャに対応しない
	smallDev := device.Device{
		ID:   "video-small",
		Kind: device.KindVideo,
		Formats: []device.Format{
			{Width: 640, Height: 480, FPS: 30},
		},
	}
	if err := output.UpdateConfiguration(smallDev); err != nil {
		t.Fatalf("出力の構成に失敗しました: %v", err)
	}
	if output.Capabilities().SupportsExtendedCapture {
		t.Error("低解像度デバイスで併録対応になっています")
	}

	// 720p以上のデバイスでは対応する
	largeDev := device.Device{
		ID:   "video-large",
		Kind: device.KindVideo,
		Formats: []device.Format{
			{Width: 1920, Height: 1080, FPS: 30},
		},
	}
	if err := output.UpdateConfiguration(largeDev); err != nil {
		t.Fatalf("出力の再構成に失敗しました: %v", err)
	}
	caps := output.Capabilities()
	if !caps.SupportsExtendedCapture {
		t.Error("高解像度デバイスで併録非対応になっています")
	}
	if caps.MaxWidth != 1920 || caps.MaxHeight != 1080 {
		t.Errorf("最大解像度が一致しません: got %dx%d", caps.MaxWidth, caps.MaxHeight)
	}
}

// TestStillOutputActivityPhases はキャプチャ中のアクティビティ通知をテストする
func TestStillOutputActivityPhases(t *testing.T) {
	output, _, published, mu := newTestStillOutput(t)

	if _, err := output.Capture(context.Background(), PhotoFeatures{}); err != nil {
		t.Fatalf("キャプチャに失敗しました: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(*published) == 0 {
		t.Fatal("アクティビティが通知されていません")
	}

	// キャプチャ中の通知と、最後のアイドル復帰が含まれる
	var sawCapture, sawImminent bool
	for _, a := range *published {
		if a.Kind == ActivityStill {
			sawCapture = true
		}
		if a.WillFireImminently {
			sawImminent = true
		}
	}
	if !sawCapture {
		t.Error("キャプチャ中のアクティビティが通知されていません")
	}
	if !sawImminent {
		t.Error("シャッター直前の通知がありません")
	}
	if last := (*published)[len(*published)-1]; last.Kind != ActivityIdle {
		t.Errorf("最後の通知がアイドルではありません: %s", last.Kind)
	}
}

// TestStillOutputUpdateConfigurationFailure は構成失敗をテストする
func TestStillOutputUpdateConfigurationFailure(t *testing.T) {
	endpoint := NewMockStillEndpoint()
	output := NewStillOutput(endpoint, nil)

	// フォーマットの無いデバイスは構成できない
	empty := device.Device{ID: "video-empty", Kind: device.KindVideo}
	if err := output.UpdateConfiguration(empty); err == nil {
		t.Error("フォーマット無しデバイスの構成はエラーにすべきです")
	}

	// エンドポイント側の失敗も伝播する
	endpoint.SetShouldFailApply(true)
	dev := device.Device{
		ID:      "video-0",
		Kind:    device.KindVideo,
		Formats: []device.Format{{Width: 1280, Height: 720, FPS: 30}},
	}
	if err := output.UpdateConfiguration(dev); err == nil {
		t.Error("エンドポイントの適用失敗が伝播していません")
	}
}

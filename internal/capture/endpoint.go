package capture

import (
	"context"

	"satsuei/internal/device"
)

// StillOptions は静止画エンドポイントへのキャプチャ指示を表す
type StillOptions struct {
	Width           int
	Height          int
	CompanionClip   bool // 併録クリップを記録する
	Proxy           bool // 速度優先のプロキシ配信
	RotationDegrees int  // 記録結果を水平にするための回転角
}

// StillCaptureDelegate は静止画キャプチャの進行をコールバックで受け取る
// エンドポイントは以下の順序で呼び出す：
//
//	WillBeginCapture → WillCapturePhoto →
//	(併録時) DidBeginCompanionClip … DidFinishCompanionClip →
//	DidFinishCapture
//
// DidFinishCompanionClip は DidFinishCapture の後に呼ばれることがある
// （併録クリップは本体の静止画より長く続くため）
type StillCaptureDelegate interface {
	// WillBeginCapture はキャプチャ要求が受理された直後に呼ばれる
	WillBeginCapture()

	// WillCapturePhoto はシャッターが切られる直前に呼ばれる
	WillCapturePhoto()

	// DidBeginCompanionClip は併録クリップの記録開始時に呼ばれる
	DidBeginCompanionClip()

	// DidFinishCompanionClip は併録クリップの記録完了時に呼ばれる
	DidFinishCompanionClip(path string, err error)

	// DidFinishCapture はキャプチャの完了時に呼ばれる
	// データが空でエラーも無い場合、呼び出し側はErrNoDataとして扱う
	DidFinishCapture(data []byte, err error)
}

// StillEndpoint は静止画を生成するハードウェアエンドポイント
type StillEndpoint interface {
	// Capture は非同期にキャプチャを実行し、進行をdelegateへ通知する
	Capture(ctx context.Context, opts StillOptions, delegate StillCaptureDelegate)

	// ApplyDevice はエンドポイントを新しいデバイス・フォーマットに合わせる
	ApplyDevice(dev device.Device, f device.Format) error
}

// ClipOptions は動画エンドポイントへの記録指示を表す
type ClipOptions struct {
	Width           int
	Height          int
	FPS             int
	TenBit          bool   // 10bit HDR記録
	AudioPath       string // オーディオデバイスパス（空なら無音）
	RotationDegrees int
}

// ClipRecordingDelegate は動画記録の完了をコールバックで受け取る
type ClipRecordingDelegate interface {
	// DidFinishRecording は記録の完了時に呼ばれる
	DidFinishRecording(path string, err error)
}

// ClipEndpoint は動画クリップを生成するハードウェアエンドポイント
type ClipEndpoint interface {
	// StartRecording は記録を開始する（fire-and-forget）
	StartRecording(ctx context.Context, opts ClipOptions, delegate ClipRecordingDelegate) error

	// StopRecording は記録を停止する
	// 結果はStartRecordingで渡されたdelegateへ通知される
	StopRecording(ctx context.Context) error

	// ApplyDevice はエンドポイントを新しいデバイス・フォーマットに合わせる
	ApplyDevice(dev device.Device, f device.Format) error
}

// ControlSettings はフォーカス・露出の制御指示を表す
type ControlSettings struct {
	FocusPoint          *Point // 対象位置（nilなら中央）
	OneShot             bool   // true: その場で一度だけ合わせる / false: 継続自動
	MonitorSceneChanges bool   // シーン変化の監視を有効にする
}

// Controller はデバイスの制御面（フォーカス・露出）を操作する
type Controller interface {
	// Apply は制御設定をデバイスへ適用する
	// デバイスをロックできない場合はエラーを返す（呼び出し側はログのみ）
	Apply(ctx context.Context, dev device.Device, settings ControlSettings) error
}

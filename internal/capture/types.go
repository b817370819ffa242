package capture

import (
	"errors"
	"time"
)

// Mode はキャプチャの動作モードを表す
type Mode string

const (
	ModeStill  Mode = "still"  // 静止画キャプチャ
	ModeMotion Mode = "motion" // 動画キャプチャ
)

// Valid はモード値が既知のものかチェックする
func (m Mode) Valid() bool {
	return m == ModeStill || m == ModeMotion
}

// Status はセッションのライフサイクル状態を表す
type Status string

const (
	StatusStopped     Status = "stopped"     // セッションは停止中
	StatusRunning     Status = "running"     // セッションは動作中
	StatusInterrupted Status = "interrupted" // 他プロセスによる割り込み中
	StatusFailed      Status = "failed"      // 開始試行が失敗した
)

// Preset はセッションの品質プリセットを表す
type Preset string

const (
	PresetPhoto    Preset = "photo"    // 静止画向け最高解像度
	PresetHigh     Preset = "high"     // 動画向け高品質
	PresetStandard Preset = "standard" // 動画向け標準品質
)

// Quality は動画モードの品質設定（永続設定から供給される）
type Quality string

const (
	QualityHigh     Quality = "high"
	QualityStandard Quality = "standard"
)

// ActivityKind はアクティビティの種別を表す
type ActivityKind string

const (
	ActivityIdle   ActivityKind = "idle"           // キャプチャは行われていない
	ActivityStill  ActivityKind = "still_capture"  // 静止画キャプチャが進行中
	ActivityMotion ActivityKind = "motion_capture" // 動画記録が進行中
)

// Activity は現在進行中のキャプチャ作業を表す
// StillOutput / MotionOutput が生成し、Manager が統合して外部へ公開する
type Activity struct {
	Kind ActivityKind `json:"kind"`

	// 静止画キャプチャ用
	WillFireImminently bool `json:"will_fire_imminently,omitempty"` // シャッターが間もなく切られる
	IsExtendedCapture  bool `json:"is_extended_capture,omitempty"`  // 併録クリップが進行中

	// 動画記録用
	Elapsed time.Duration `json:"elapsed,omitempty"` // 記録開始からの経過時間
}

// Capabilities は現在のデバイス・モードの組み合わせで何ができるかを表す
// セッションのトポロジーかアクティブデバイスが変わるたびに再計算される
type Capabilities struct {
	SupportsExtendedCapture bool `json:"supports_extended_capture"` // 併録クリップ付き静止画が可能か
	SupportsHDR             bool `json:"supports_hdr"`              // 10bit HDR記録が可能か
	MaxWidth                int  `json:"max_width"`                 // 最大キャプチャ幅
	MaxHeight               int  `json:"max_height"`                // 最大キャプチャ高さ
}

// Point はフォーカス・露出の対象位置を表す（0.0〜1.0の正規化座標）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PhotoFeatures は静止画キャプチャのオプションを表す
type PhotoFeatures struct {
	LiveCompanion bool // 併録クリップ（ライブ写真相当）を記録する
	Proxy         bool // 速度優先のプロキシ画像で返す
}

// Photo は静止画キャプチャの結果を表す
type Photo struct {
	ID            string // キャプチャの一意識別子
	Data          []byte // エンコード済み画像データ
	Proxy         bool   // プロキシ画像かどうか
	CompanionPath string // 併録クリップのファイルパス（無い場合は空）
}

// Clip は動画記録の結果を表す
type Clip struct {
	ID       string        // 記録の一意識別子
	Path     string        // 記録ファイルのパス
	Duration time.Duration // 記録時間
}

// EventKind は統合イベントの種別を表す
type EventKind string

const (
	EventStatus       EventKind = "status"       // セッション状態の変化
	EventActivity     EventKind = "activity"     // アクティビティの変化
	EventCapabilities EventKind = "capabilities" // 能力記述子の再計算
	EventInterruption EventKind = "interruption" // 割り込み状態の変化
	EventRotation     EventKind = "rotation"     // プレビュー回転角の変化
)

// Event はManagerが外部へ配信する統合イベント
type Event struct {
	Kind         EventKind     `json:"kind"`
	Status       Status        `json:"status,omitempty"`
	Activity     *Activity     `json:"activity,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Interrupted  *bool         `json:"interrupted,omitempty"`
	PreviewAngle int           `json:"preview_angle,omitempty"`
}

// エラー分類
// 構成手順の失敗は動作中なら復旧、初期セットアップ中なら致命として扱う
var (
	// ErrUnauthorized はキャプチャ権限が拒否されていることを表す
	ErrUnauthorized = errors.New("キャプチャ権限がありません")

	// ErrSetupFailed は初期構成中のデバイス・入出力の接続失敗を表す
	ErrSetupFailed = errors.New("セッションの初期構成に失敗しました")

	// ErrAddInputFailed は入力の接続失敗を表す（直前の構成に戻して継続する）
	ErrAddInputFailed = errors.New("入力の接続に失敗しました")

	// ErrAddOutputFailed は出力の接続失敗を表す（直前の構成に戻して継続する）
	ErrAddOutputFailed = errors.New("出力の接続に失敗しました")

	// ErrDeviceChangeFailed はデバイス切り替えの失敗を表す（元のデバイスへ自動復旧する）
	ErrDeviceChangeFailed = errors.New("デバイスの切り替えに失敗しました")

	// ErrNoData はエンドポイントが結果を生成せずに完了したことを表す
	ErrNoData = errors.New("キャプチャ結果が生成されませんでした")

	// ErrNotRunning はセッションが動作中でないことを表す
	ErrNotRunning = errors.New("セッションが開始されていません")
)

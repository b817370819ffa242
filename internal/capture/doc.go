// Package capture はライブキャプチャセッションの統合管理を担う
//
// # 責務
// - キャプチャセッション（入力・出力・プリセット）のトポロジー管理
// - 静止画モード・動画モードの切り替えと出力の付け替え
// - デバイス切り替え（巡回選択・優先デバイス追従）と失敗時の復旧
// - デバイス回転の追跡と出力への回転角の反映
// - 割り込み（他プロセスによるデバイス占有）と実行時エラーからの自動復帰
// - 静止画・動画キャプチャ結果の取得とアクティビティの一元配信
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 1つのカメラ・マイクのペアでセッションを構成し排他的に制御したい
// - 撮影の進行状況（アクティビティ）を購読したい
// - デバイスやモードの変更を安全に直列化したい
//
// # 仕様
// - Manager: セッション操作のインターフェース。全ての変更操作は1つの
//   ミューテックスで直列化され、構成途中の状態が外部から観測されることはない
// - Session: BeginConfiguration/CommitConfiguration で囲まれた
//   原子的な構成変更のみを受け付けるトポロジー
// - StillOutput / MotionOutput: ハードウェアエンドポイントを1つずつ所有し、
//   キャプチャ要求を結果に変換しアクティビティを通知する
// - RotationTracker: デバイスごとに作り直される回転角の追跡
// - Monitor: 割り込み・実行時エラー信号の購読（セッションと同寿命）
// - Hub: 複数プロデューサのイベントを購読者へブロードキャスト
//
// # 前提要件
//   - ffmpeg: 静止画・動画キャプチャに使用
//   - v4l-utils: デバイス制御（フォーカス・露出）に使用
package capture

// Package device はキャプチャデバイスの列挙と選択を担う
//
// # 責務
// - ビデオ・オーディオキャプチャデバイスの列挙
// - メディア種別ごとのデフォルトデバイスの決定
// - システム優先デバイス変更（外付けカメラの接続など）の通知
// - デバイスが対応するフォーマット（解像度・フレームレート・10bit）の取得
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - セッションに接続するデバイスを安定した順序で列挙したい
// - 新しく接続されたデバイスへの切り替えイベントを受け取りたい
// - デバイスの能力（HDR可否など）を判定したい
//
// # 仕様
// - Lookup: デバイス列挙のインターフェース
// - LinuxLookup: V4L2デバイス（/dev/video*）とALSAデバイスの検出
// - MockLookup: テスト用のインメモリ実装
// - 列挙順序はデバイス番号の昇順で安定
//
// # 前提要件
//   - v4l-utils: カメラ名・フォーマットの取得に使用
//   - alsa-utils: オーディオデバイスの検出に使用（arecord）
package device

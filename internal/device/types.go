package device

import (
	"context"
)

// Kind はデバイスのメディア種別を表す
type Kind string

const (
	KindVideo Kind = "video" // ビデオキャプチャデバイス
	KindAudio Kind = "audio" // オーディオキャプチャデバイス
)

// Device はキャプチャデバイスの情報を表す
type Device struct {
	ID      string   // デバイスの一意識別子
	Kind    Kind     // メディア種別
	Path    string   // デバイスパス（例: /dev/video0, hw:0,0）
	Name    string   // デバイスの表示名
	Formats []Format // サポートされるフォーマット一覧
}

// Format はデバイスが対応する1つのキャプチャフォーマットを表す
type Format struct {
	Width  int  // 画像幅
	Height int  // 画像高さ
	FPS    int  // フレームレート
	TenBit bool // 10bit階調（HDR記録）に対応するか
}

// BestFormat は最も解像度の高いフォーマットを返す
// フォーマットが1つもない場合は2番目の戻り値がfalseになる
func (d Device) BestFormat() (Format, bool) {
	return d.bestFormat(func(Format) bool { return true })
}

// BestTenBitFormat は10bit対応フォーマットのうち最も解像度の高いものを返す
func (d Device) BestTenBitFormat() (Format, bool) {
	return d.bestFormat(func(f Format) bool { return f.TenBit })
}

// bestFormat は条件を満たすフォーマットから最大画素数のものを選ぶ
func (d Device) bestFormat(match func(Format) bool) (Format, bool) {
	var best Format
	found := false
	for _, f := range d.Formats {
		if !match(f) {
			continue
		}
		if !found || f.Width*f.Height > best.Width*best.Height {
			best = f
			found = true
		}
	}
	return best, found
}

// Lookup はキャプチャデバイスの列挙機能を提供する
type Lookup interface {
	// DefaultVideoDevice はデフォルトのビデオデバイスを返す
	DefaultVideoDevice(ctx context.Context) (*Device, error)

	// DefaultAudioDevice はデフォルトのオーディオデバイスを返す
	DefaultAudioDevice(ctx context.Context) (*Device, error)

	// VideoDevices は利用可能なビデオデバイス一覧を安定した順序で返す
	VideoDevices(ctx context.Context) ([]Device, error)

	// PreferredDeviceChanges はシステム優先デバイスの変更通知チャンネルを返す
	// 新しいデバイスが接続されるなどして優先デバイスが変わったときに送信される
	PreferredDeviceChanges() <-chan Device

	// Close は監視ゴルーチンを停止しチャンネルを閉じる
	Close()
}

package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LinuxLookup はLinux環境でのキャプチャデバイス検出を実装する
// ビデオはV4L2（/dev/video*）、オーディオはALSA（arecord）を使用する
type LinuxLookup struct {
	changeCh chan Device
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	// ホットプラグ検出用：前回スキャン時のデバイスパス集合
	mu    sync.Mutex
	known map[string]bool
}

// NewLinuxLookup は新しいLinuxLookupを作成し、ホットプラグ監視を開始する
func NewLinuxLookup() *LinuxLookup {
	l := &LinuxLookup{
		changeCh: make(chan Device, 4),
		stopCh:   make(chan struct{}),
		known:    make(map[string]bool),
	}

	l.wg.Add(1)
	go l.watchHotplug()

	return l
}

// DefaultVideoDevice はデフォルトのビデオデバイスを返す
// 列挙順で先頭のデバイス（最も小さい番号のメインカメラ）を採用する
func (l *LinuxLookup) DefaultVideoDevice(ctx context.Context) (*Device, error) {
	devices, err := l.VideoDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("利用可能なビデオデバイスがありません")
	}
	return &devices[0], nil
}

// DefaultAudioDevice はデフォルトのオーディオデバイスを返す
func (l *LinuxLookup) DefaultAudioDevice(ctx context.Context) (*Device, error) {
	cmd := exec.CommandContext(ctx, "arecord", "-l")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("オーディオデバイスの列挙に失敗: %w", err)
	}

	// "card 0: ... device 0: ..." の行からカードとデバイス番号を抽出
	re := regexp.MustCompile(`card (\d+): ([^\[]+)\[[^\]]*\], device (\d+):`)
	for _, line := range strings.Split(string(output), "\n") {
		matches := re.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		path := fmt.Sprintf("hw:%s,%s", matches[1], matches[3])
		return &Device{
			ID:   "audio-" + matches[1] + "-" + matches[3],
			Kind: KindAudio,
			Path: path,
			Name: strings.TrimSpace(matches[2]),
		}, nil
	}

	return nil, fmt.Errorf("利用可能なオーディオデバイスがありません")
}

// VideoDevices は利用可能なビデオデバイス一覧を安定した順序で返す
func (l *LinuxLookup) VideoDevices(ctx context.Context) ([]Device, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソートして順序を安定させる
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []Device
	for _, path := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !isDeviceAccessible(path) {
			continue
		}

		// 同一カメラの複数チャンネルを除外し、カラー対応のメインチャンネルのみ採用
		if !l.isMainCamera(ctx, path) {
			continue
		}

		devices = append(devices, Device{
			ID:      fmt.Sprintf("video-%d", extractDeviceNumber(path)),
			Kind:    KindVideo,
			Path:    path,
			Name:    l.deviceName(path),
			Formats: l.probeFormats(ctx, path),
		})
	}

	return devices, nil
}

// PreferredDeviceChanges はシステム優先デバイスの変更通知チャンネルを返す
func (l *LinuxLookup) PreferredDeviceChanges() <-chan Device {
	return l.changeCh
}

// Close はホットプラグ監視を停止する
func (l *LinuxLookup) Close() {
	l.once.Do(func() {
		close(l.stopCh)
		l.wg.Wait()
		close(l.changeCh)
	})
}

// watchHotplug は定期的にデバイス一覧をスキャンし、新規接続を通知する
func (l *LinuxLookup) watchHotplug() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.scanForNewDevices()
		}
	}
}

// scanForNewDevices は新しく現れたデバイスを検出して通知する
func (l *LinuxLookup) scanForNewDevices() {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	devices, err := l.VideoDevices(ctx)
	if err != nil {
		return
	}

	l.mu.Lock()
	first := len(l.known) == 0
	var added []Device
	current := make(map[string]bool, len(devices))
	for _, d := range devices {
		current[d.Path] = true
		if !l.known[d.Path] {
			added = append(added, d)
		}
	}
	l.known = current
	l.mu.Unlock()

	// 初回スキャンは既存デバイスの把握のみで通知しない
	if first {
		return
	}

	for _, d := range added {
		select {
		case l.changeCh <- d:
		case <-l.stopCh:
			return
		default:
			// 受信者が追いついていない場合は通知を落とす
		}
	}
}

// deviceName はv4l2-ctlから実際のカメラ名を取得する
// 取得できない場合はデバイス番号から表示名を生成する
func (l *LinuxLookup) deviceName(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", path, "--info")
	output, err := cmd.Output()
	if err == nil {
		// "Card type" の行からカメラ名を抽出
		for _, line := range strings.Split(string(output), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Card type") {
				parts := strings.SplitN(line, ":", 2)
				if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
					return strings.TrimSpace(parts[1])
				}
			}
		}
	}

	return fmt.Sprintf("カメラ %d", extractDeviceNumber(path))
}

// probeFormats はv4l2-ctlの出力からサポートフォーマットを取得する
// 解析できない場合は一般的なUVCカメラのフォーマットを仮定する
func (l *LinuxLookup) probeFormats(ctx context.Context, path string) []Format {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", path, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return fallbackFormats()
	}

	outputStr := string(output)
	tenBit := strings.Contains(outputStr, "P010") || strings.Contains(outputStr, "10-bit")

	// "Size: Discrete 1280x720" の行から解像度を抽出
	re := regexp.MustCompile(`Size: Discrete (\d+)x(\d+)`)
	seen := make(map[string]bool)
	var formats []Format
	for _, matches := range re.FindAllStringSubmatch(outputStr, -1) {
		key := matches[1] + "x" + matches[2]
		if seen[key] {
			continue
		}
		seen[key] = true

		w, _ := strconv.Atoi(matches[1])
		h, _ := strconv.Atoi(matches[2])
		formats = append(formats, Format{Width: w, Height: h, FPS: 30, TenBit: tenBit && w >= 1920})
	}

	if len(formats) == 0 {
		return fallbackFormats()
	}
	return formats
}

// isMainCamera はデバイスがメインカメラ（カラー）かどうかを判定する
func (l *LinuxLookup) isMainCamera(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", path, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return false
	}

	outputStr := string(output)

	// グレースケールのみのデバイス（赤外線センサーなど）は除外
	hasColor := strings.Contains(outputStr, "YUYV") || strings.Contains(outputStr, "MJPG")
	if !hasColor {
		return false
	}

	// 同じ物理カメラの複数チャンネルは最も小さい番号のみ採用
	deviceNum := extractDeviceNumber(path)
	name := l.deviceName(path)
	for i := 0; i < deviceNum; i++ {
		sibling := fmt.Sprintf("/dev/video%d", i)
		if !isDeviceAccessible(sibling) {
			continue
		}
		if l.deviceName(sibling) == name {
			return false
		}
	}

	return true
}

// fallbackFormats はフォーマット取得に失敗した場合の標準的なフォーマット一覧を返す
func fallbackFormats() []Format {
	return []Format{
		{Width: 640, Height: 480, FPS: 30},
		{Width: 1280, Height: 720, FPS: 30},
		{Width: 1920, Height: 1080, FPS: 30},
	}
}

// isDeviceAccessible はデバイスファイルが存在し読み取り可能かチェックする
func isDeviceAccessible(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	matched, _ := regexp.MatchString(`^/dev/video\d+$`, path)
	return matched
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(path string) int {
	re := regexp.MustCompile(`video(\d+)`)
	matches := re.FindStringSubmatch(path)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}

	return num
}

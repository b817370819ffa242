package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"satsuei/internal/device"
)

// V4L2StillEndpoint はffmpeg経由でV4L2デバイスから静止画を取得するエンドポイント
type V4L2StillEndpoint struct {
	mu         sync.Mutex
	devicePath string
	width      int
	height     int
	outputDir  string
}

// NewV4L2StillEndpoint は新しいV4L2StillEndpointを作成する
// outputDirには併録クリップのファイルが書き出される
func NewV4L2StillEndpoint(outputDir string) *V4L2StillEndpoint {
	return &V4L2StillEndpoint{
		outputDir: outputDir,
	}
}

// ApplyDevice はエンドポイントを新しいデバイス・フォーマットに合わせる
func (e *V4L2StillEndpoint) ApplyDevice(dev device.Device, f device.Format) error {
	if dev.Path == "" {
		return fmt.Errorf("デバイスパスが空です")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.devicePath = dev.Path
	e.width = f.Width
	e.height = f.Height
	return nil
}

// Capture は非同期にキャプチャを実行し、進行をdelegateへ通知する
func (e *V4L2StillEndpoint) Capture(ctx context.Context, opts StillOptions, delegate StillCaptureDelegate) {
	e.mu.Lock()
	devicePath := e.devicePath
	width, height := e.width, e.height
	outputDir := e.outputDir
	e.mu.Unlock()

	if opts.Width > 0 && opts.Height > 0 {
		width, height = opts.Width, opts.Height
	}

	go func() {
		delegate.WillBeginCapture()

		// 併録クリップは静止画と並行して記録される
		var companionWg sync.WaitGroup
		if opts.CompanionClip {
			delegate.DidBeginCompanionClip()
			companionWg.Add(1)
			go func() {
				defer companionWg.Done()
				path, err := recordCompanionClip(ctx, devicePath, width, height, outputDir)
				delegate.DidFinishCompanionClip(path, err)
			}()
		}

		delegate.WillCapturePhoto()

		data, err := captureJPEGFrame(ctx, devicePath, width, height, opts.Proxy)

		// 静止画の回転はffmpegのメタデータではなくEXIF回転で表現すべきだが、
		// MJPEGキャプチャではここで結果を返すのみとする
		delegate.DidFinishCapture(data, err)

		companionWg.Wait()
	}()
}

// captureJPEGFrame はffmpegで1フレームをJPEGとしてキャプチャする
func captureJPEGFrame(ctx context.Context, devicePath string, width, height int, proxy bool) ([]byte, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("デバイスが構成されていません")
	}

	// プロキシ配信は品質を落として速度を優先する
	quality := "2"
	if proxy {
		quality = "10"
	}

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", quality,
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("JPEGフレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// recordCompanionClip は静止画に併録する短いクリップを記録する
func recordCompanionClip(ctx context.Context, devicePath string, width, height int, outputDir string) (string, error) {
	if devicePath == "" {
		return "", fmt.Errorf("デバイスが構成されていません")
	}

	path := filepath.Join(outputDir, fmt.Sprintf("companion-%s.mp4", uuid.New().String()))

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", devicePath,
		"-t", "1.5",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-y",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("併録クリップの記録に失敗: %w (stderr: %s)", err, stderr.String())
	}

	return path, nil
}

// V4L2ClipEndpoint はffmpeg経由でV4L2デバイスから動画を記録するエンドポイント
type V4L2ClipEndpoint struct {
	mu         sync.Mutex
	devicePath string
	format     device.Format
	outputDir  string

	// 記録中のffmpegプロセス
	cmd      *exec.Cmd
	path     string
	delegate ClipRecordingDelegate
}

// NewV4L2ClipEndpoint は新しいV4L2ClipEndpointを作成する
func NewV4L2ClipEndpoint(outputDir string) *V4L2ClipEndpoint {
	return &V4L2ClipEndpoint{
		outputDir: outputDir,
	}
}

// ApplyDevice はエンドポイントを新しいデバイス・フォーマットに合わせる
func (e *V4L2ClipEndpoint) ApplyDevice(dev device.Device, f device.Format) error {
	if dev.Path == "" {
		return fmt.Errorf("デバイスパスが空です")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return fmt.Errorf("記録中はデバイスを変更できません")
	}

	e.devicePath = dev.Path
	e.format = f
	return nil
}

// StartRecording は記録を開始する
func (e *V4L2ClipEndpoint) StartRecording(ctx context.Context, opts ClipOptions, delegate ClipRecordingDelegate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return fmt.Errorf("記録は既に開始されています")
	}
	if e.devicePath == "" {
		return fmt.Errorf("デバイスが構成されていません")
	}

	width, height, fps := e.format.Width, e.format.Height, e.format.FPS
	if opts.Width > 0 {
		width, height = opts.Width, opts.Height
	}
	if opts.FPS > 0 {
		fps = opts.FPS
	}

	path := filepath.Join(e.outputDir, fmt.Sprintf("clip-%s.mp4", uuid.New().String()))

	args := []string{
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", e.devicePath,
	}
	if opts.AudioPath != "" {
		args = append(args, "-f", "alsa", "-i", opts.AudioPath)
	}
	args = append(args, "-c:v", "libx264", "-preset", "veryfast")
	if opts.TenBit {
		// 10bit階調での記録（HDR）
		args = append(args, "-pix_fmt", "yuv420p10le", "-profile:v", "high10")
	}
	if opts.RotationDegrees != 0 {
		args = append(args, "-metadata:s:v:0", fmt.Sprintf("rotate=%d", opts.RotationDegrees))
	}
	args = append(args, "-y", path)

	// コンテキストに縛らず起動する（停止はStopRecordingのSIGINTで行う）
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stderr = &bytes.Buffer{}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	e.cmd = cmd
	e.path = path
	e.delegate = delegate
	return nil
}

// StopRecording は記録を停止し、結果をdelegateへ通知する
func (e *V4L2ClipEndpoint) StopRecording(_ context.Context) error {
	e.mu.Lock()
	cmd := e.cmd
	path := e.path
	delegate := e.delegate
	e.cmd = nil
	e.path = ""
	e.delegate = nil
	e.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("記録が開始されていません")
	}

	go func() {
		// SIGINTでffmpegにファイルを閉じさせる
		if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
			delegate.DidFinishRecording("", fmt.Errorf("記録プロセスの停止に失敗: %w", err))
			return
		}

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case <-done:
			// ffmpegはSIGINT停止で非ゼロ終了することがあるため、
			// 出力ファイルの有無で成否を判定する
		case <-time.After(10 * time.Second):
			_ = cmd.Process.Kill()
			<-done
		}

		if _, err := os.Stat(path); err != nil {
			delegate.DidFinishRecording("", fmt.Errorf("記録ファイルが生成されませんでした: %w", err))
			return
		}

		delegate.DidFinishRecording(path, nil)
	}()

	return nil
}

// V4L2Controller はv4l2-ctl経由でフォーカス・露出を制御する
type V4L2Controller struct{}

// NewV4L2Controller は新しいV4L2Controllerを作成する
func NewV4L2Controller() *V4L2Controller {
	return &V4L2Controller{}
}

// Apply は制御設定をデバイスへ適用する
func (c *V4L2Controller) Apply(ctx context.Context, dev device.Device, settings ControlSettings) error {
	controls := make(map[string]string)

	if settings.OneShot {
		// その場で一度だけ合わせる：自動追従を止めて現在のシーンに固定する
		controls["focus_automatic_continuous"] = "0"
		controls["auto_exposure"] = "1"
	} else {
		// 継続自動モードへ戻す
		controls["focus_automatic_continuous"] = "1"
		controls["auto_exposure"] = "3"
	}

	for control, value := range controls {
		cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", dev.Path,
			"--set-ctrl", fmt.Sprintf("%s=%s", control, value))
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("コントロール %s の設定に失敗: %w", control, err)
		}
	}

	return nil
}

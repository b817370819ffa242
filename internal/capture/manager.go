package capture

import (
	"context"
	"fmt"
	"log"
	"sync"

	"satsuei/internal/device"
	"satsuei/internal/prefs"
)

// Manager はキャプチャセッションの統合管理を担うインターフェース
//
// 全ての変更操作は内部で直列化され、構成途中の状態が
// 並行するキャプチャ要求から観測されることはない。
// キャプチャ結果の待機は呼び出し元のみをブロックする
type Manager interface {
	// Start はセッションを開始する
	// initialModeが空の場合、保存された設定から復元する
	Start(ctx context.Context, initialMode Mode, hdr bool) error

	// Stop はセッションを停止し、全てのリスナーを解放する
	Stop(ctx context.Context) error

	// SetMode は動作モードを原子的に切り替える（同一モードは安全な無操作）
	SetMode(ctx context.Context, mode Mode) error

	// NextDevice は列挙順で次のビデオデバイスへ切り替える（末尾で先頭へ戻る）
	NextDevice(ctx context.Context) error

	// SwitchDevice は指定デバイスへ切り替える（既にアクティブなら無操作）
	SwitchDevice(ctx context.Context, dev device.Device) error

	// FocusAndExpose はフォーカス・露出を調整する
	// ユーザー起点の場合は一度だけ合わせてシーン変化の監視を有効にし、
	// システム起点の場合は継続自動モードへ戻す。失敗はログのみで表面化しない
	FocusAndExpose(ctx context.Context, at Point, userInitiated bool)

	// SetHDR は動画モードでのHDR記録を切り替え、実効状態を返す
	SetHDR(ctx context.Context, enabled bool) (bool, error)

	// CapturePhoto は静止画をキャプチャする
	CapturePhoto(ctx context.Context, features PhotoFeatures) (Photo, error)

	// StartRecording は動画記録を開始する
	StartRecording(ctx context.Context) error

	// StopRecording は動画記録を停止し、結果を返す
	StopRecording(ctx context.Context) (Clip, error)

	// Status は現在のセッション状態を返す
	Status() Status

	// CurrentMode は現在の動作モードを返す
	CurrentMode() Mode

	// Capabilities は現在の能力記述子を返す
	Capabilities() Capabilities

	// Activity は現在のアクティビティを返す
	Activity() Activity

	// IsInterrupted は割り込み中かどうかを返す
	IsInterrupted() bool

	// HDREnabled は実効的なHDR状態を返す
	HDREnabled() bool

	// ActiveDevice は現在のビデオデバイスを返す
	ActiveDevice() (device.Device, bool)

	// Subscribe は統合イベントの購読チャンネルと解除関数を返す
	Subscribe() (<-chan Event, func())
}

// Deps はDefaultManagerの依存をまとめる
type Deps struct {
	Lookup        device.Lookup
	Authorizer    Authorizer
	Prefs         prefs.Store
	StillEndpoint StillEndpoint
	ClipEndpoint  ClipEndpoint
	Controller    Controller
	Interruptions InterruptionSource

	// OrientationSource はデバイスごとの向き供給元を作るファクトリー
	OrientationSource func(dev device.Device) OrientationSource

	// DefaultMode は空モード開始時の最終フォールバック
	// 保存された設定が優先され、両方空ならModeStillになる
	DefaultMode Mode

	// SceneChanges はシーン変化の通知チャンネル（nil可）
	SceneChanges <-chan struct{}

	// Probe はデバイス接続前の利用可能性チェック（nil可）
	Probe func(ctx context.Context, dev device.Device) error
}

// DefaultManager はManagerのデフォルト実装
// セッショントポロジーの唯一の所有者であり、
// 全ての変更操作を1つのミューテックスで直列化する
type DefaultManager struct {
	deps Deps
	hub  *Hub

	mu           sync.Mutex
	session      *Session
	still        *StillOutput
	motion       *MotionOutput
	monitor      *Monitor
	tracker      *RotationTracker
	mode         Mode
	quality      Quality
	hdrPreferred bool
	status       Status
	interrupted  bool
	activeDevice device.Device
	sceneArmed   bool
	restarts     int

	// セッション寿命のリスナー制御
	listenerStop chan struct{}
	listenerWg   sync.WaitGroup
}

// NewDefaultManager は新しいDefaultManagerを作成する
func NewDefaultManager(deps Deps) *DefaultManager {
	if deps.OrientationSource == nil {
		deps.OrientationSource = func(device.Device) OrientationSource {
			return NewIIOOrientationSource()
		}
	}

	m := &DefaultManager{
		deps:    deps,
		hub:     NewHub(),
		session: NewSession(),
		status:  StatusStopped,
		mode:    ModeStill,
		quality: QualityHigh,
	}

	m.still = NewStillOutput(deps.StillEndpoint, m.publishActivity)
	m.motion = NewMotionOutput(deps.ClipEndpoint, m.publishActivity)
	m.monitor = NewMonitor(deps.Interruptions, m)

	return m
}

// Start はセッションを開始する
func (m *DefaultManager) Start(ctx context.Context, initialMode Mode, hdr bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 既に動作中なら無操作
	if m.status == StatusRunning || m.status == StatusInterrupted {
		return nil
	}

	if !m.deps.Authorizer.Authorized(ctx) {
		m.status = StatusStopped
		return ErrUnauthorized
	}

	// 保存された設定から初期値を復元する
	saved, err := m.deps.Prefs.Load()
	if err != nil {
		log.Printf("保存された設定の読み込みに失敗しました: %v", err)
	}
	if initialMode == "" {
		if saved.Mode != "" {
			initialMode = Mode(saved.Mode)
			hdr = saved.HDR
		} else if m.deps.DefaultMode != "" {
			initialMode = m.deps.DefaultMode
		} else {
			initialMode = ModeStill
		}
	}
	if !initialMode.Valid() {
		return fmt.Errorf("無効なモード: %s", initialMode)
	}
	if saved.Quality != "" {
		m.quality = Quality(saved.Quality)
	}

	if err := m.setupLocked(ctx, initialMode, hdr, saved); err != nil {
		m.status = StatusFailed
		m.publishStatus(StatusFailed)
		return err
	}

	m.status = StatusRunning
	m.interrupted = false
	m.publishStatus(StatusRunning)
	return nil
}

// setupLocked は初回開始時の一括セットアップを行う（ロック済み前提）
// 失敗した場合、セッションは停止したまま残る
func (m *DefaultManager) setupLocked(ctx context.Context, mode Mode, hdr bool, saved prefs.Preferences) error {
	devices, err := m.deps.Lookup.VideoDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: 利用可能なビデオデバイスがありません", ErrSetupFailed)
	}

	// 前回使用したデバイスを優先し、無ければ既定のデバイスを使う
	video := devices[0]
	if d, err := m.deps.Lookup.DefaultVideoDevice(ctx); err == nil && d != nil {
		video = *d
	}
	for _, d := range devices {
		if d.ID == saved.LastDeviceID {
			video = d
			break
		}
	}

	// オーディオは無くてもセッションは成立する（無音記録になる）
	audio, err := m.deps.Lookup.DefaultAudioDevice(ctx)
	if err != nil {
		log.Printf("オーディオデバイスが見つかりません（無音で継続します）: %v", err)
		audio = nil
	}

	s := m.session
	if err := s.BeginConfiguration(); err != nil {
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	if err := m.attachVideoLocked(ctx, video); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	if audio != nil {
		if err := s.SetAudioInput(&Input{Device: *audio}); err != nil {
			s.RollbackConfiguration()
			return fmt.Errorf("%w: %v", ErrSetupFailed, err)
		}
		m.motion.SetAudioPath(audio.Path)
	}

	out := m.outputForMode(mode)
	if err := s.AddOutput(out); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	if err := s.SetPreset(m.presetForMode(mode)); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	if err := s.SetRunning(true); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	if err := out.UpdateConfiguration(video); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	if err := s.CommitConfiguration(); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	m.mode = mode
	m.activeDevice = video
	m.hdrPreferred = hdr

	// 回転追跡・割り込み監視・リスナーはセッションと同寿命
	m.resetRotationLocked(video)
	m.monitor.Start()
	m.startListenersLocked()

	if mode == ModeMotion && hdr {
		if _, err := m.motion.SetHDR(true); err != nil {
			log.Printf("HDRの有効化に失敗しました: %v", err)
		}
	}

	m.recomputeCapabilitiesLocked()
	return nil
}

// Stop はセッションを停止する
func (m *DefaultManager) Stop(_ context.Context) error {
	m.mu.Lock()
	if m.status == StatusStopped || m.status == StatusFailed {
		m.mu.Unlock()
		return nil
	}

	recording := m.motion.Recording()
	if m.listenerStop != nil {
		close(m.listenerStop)
		m.listenerStop = nil
	}
	tracker := m.tracker
	m.tracker = nil
	m.status = StatusStopped
	m.interrupted = false
	m.mu.Unlock()

	// リスナー・監視の解放はロックの外で行う
	// （ハンドラがロック待ちでブロックしているとデッドロックするため）
	if recording {
		stopCtx := context.Background()
		if _, err := m.motion.StopRecording(stopCtx); err != nil {
			log.Printf("停止時の記録終了に失敗しました: %v", err)
		}
	}
	m.monitor.Stop()
	if tracker != nil {
		tracker.Close()
	}
	m.listenerWg.Wait()

	m.mu.Lock()
	s := m.session
	if err := s.BeginConfiguration(); err == nil {
		_ = s.SetRunning(false)
		_ = s.SetVideoInput(nil)
		_ = s.SetAudioInput(nil)
		for _, o := range s.Outputs() {
			_ = s.RemoveOutput(o)
		}
		if err := s.CommitConfiguration(); err != nil {
			s.RollbackConfiguration()
		}
	}
	m.mu.Unlock()

	m.publishStatus(StatusStopped)
	return nil
}

// SetMode は動作モードを原子的に切り替える
func (m *DefaultManager) SetMode(_ context.Context, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireRunningLocked(); err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("無効なモード: %s", mode)
	}

	// 同一モードへの切り替えは安全な無操作
	if mode == m.mode {
		return nil
	}

	if m.motion.Recording() {
		return fmt.Errorf("記録中はモードを変更できません")
	}

	s := m.session
	if err := s.BeginConfiguration(); err != nil {
		return fmt.Errorf("%w: %v", ErrAddOutputFailed, err)
	}

	old := m.outputForMode(m.mode)
	next := m.outputForMode(mode)

	if err := s.RemoveOutput(old); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrAddOutputFailed, err)
	}
	if err := s.AddOutput(next); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrAddOutputFailed, err)
	}
	if err := s.SetPreset(m.presetForMode(mode)); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrAddOutputFailed, err)
	}
	if err := next.UpdateConfiguration(m.activeDevice); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrAddOutputFailed, err)
	}
	if err := s.CommitConfiguration(); err != nil {
		s.RollbackConfiguration()
		return fmt.Errorf("%w: %v", ErrAddOutputFailed, err)
	}

	m.mode = mode

	// 新しい出力に現在の回転角を反映する
	if m.tracker != nil {
		next.SetRotationAngle(m.tracker.Angle().Capture)
	}

	// 動画モードへ入るときはHDRの適用可否を再評価する
	if mode == ModeMotion && m.hdrPreferred {
		if _, err := m.motion.SetHDR(true); err != nil {
			log.Printf("HDRの再適用に失敗しました: %v", err)
		}
	}

	m.recomputeCapabilitiesLocked()
	m.savePrefsLocked()
	return nil
}

// NextDevice は列挙順で次のビデオデバイスへ切り替える
func (m *DefaultManager) NextDevice(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireRunningLocked(); err != nil {
		return err
	}

	devices, err := m.deps.Lookup.VideoDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceChangeFailed, err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: 利用可能なビデオデバイスがありません", ErrDeviceChangeFailed)
	}

	// 現在のデバイスの次を選ぶ（末尾なら先頭へ戻る）
	index := -1
	for i, d := range devices {
		if d.ID == m.activeDevice.ID {
			index = i
			break
		}
	}
	next := devices[(index+1)%len(devices)]

	if next.ID == m.activeDevice.ID {
		return nil
	}

	return m.switchDeviceLocked(ctx, next)
}

// SwitchDevice は指定デバイスへ切り替える
func (m *DefaultManager) SwitchDevice(ctx context.Context, dev device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireRunningLocked(); err != nil {
		return err
	}

	// 既にアクティブなデバイスへの切り替えは無操作
	if dev.ID == m.activeDevice.ID {
		return nil
	}

	return m.switchDeviceLocked(ctx, dev)
}

// switchDeviceLocked はデバイスを切り替える（ロック済み前提）
// 接続に失敗した場合は元のデバイスへ戻し、セッションを動作中のまま保つ
func (m *DefaultManager) switchDeviceLocked(ctx context.Context, next device.Device) error {
	prev := m.activeDevice
	active := m.outputForMode(m.mode)

	s := m.session
	if err := s.BeginConfiguration(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceChangeFailed, err)
	}

	attachErr := m.attachVideoLocked(ctx, next)
	if attachErr == nil {
		attachErr = active.UpdateConfiguration(next)
	}

	if attachErr != nil {
		// 元のデバイスへ復旧する：動作中のセッションがビデオ入力を
		// 失った状態で残ることは決して無い
		s.RollbackConfiguration()
		if err := active.UpdateConfiguration(prev); err != nil {
			log.Printf("元のデバイスの再構成に失敗しました: %v", err)
		}
		return fmt.Errorf("%w: %v", ErrDeviceChangeFailed, attachErr)
	}

	if err := s.CommitConfiguration(); err != nil {
		s.RollbackConfiguration()
		if err := active.UpdateConfiguration(prev); err != nil {
			log.Printf("元のデバイスの再構成に失敗しました: %v", err)
		}
		return fmt.Errorf("%w: %v", ErrDeviceChangeFailed, err)
	}

	m.activeDevice = next

	// もう一方の出力もベストエフォートで追従させる
	inactive := m.outputForMode(otherMode(m.mode))
	if err := inactive.UpdateConfiguration(next); err != nil {
		log.Printf("非アクティブ出力の再構成に失敗しました: %v", err)
	}

	// デバイスが変わったので回転の基準を作り直す
	m.resetRotationLocked(next)

	m.recomputeCapabilitiesLocked()
	m.savePrefsLocked()
	return nil
}

// attachVideoLocked はビデオ入力の接続を試みる（構成変更ブロック内前提）
func (m *DefaultManager) attachVideoLocked(ctx context.Context, dev device.Device) error {
	if m.deps.Probe != nil {
		if err := m.deps.Probe(ctx, dev); err != nil {
			return fmt.Errorf("%w: %v", ErrAddInputFailed, err)
		}
	}
	if len(dev.Formats) == 0 {
		return fmt.Errorf("%w: デバイス %s に利用可能なフォーマットがありません", ErrAddInputFailed, dev.ID)
	}
	if err := m.session.SetVideoInput(&Input{Device: dev}); err != nil {
		return fmt.Errorf("%w: %v", ErrAddInputFailed, err)
	}
	return nil
}

// FocusAndExpose はフォーカス・露出を調整する
func (m *DefaultManager) FocusAndExpose(ctx context.Context, at Point, userInitiated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRunning {
		return
	}
	if m.deps.Controller == nil {
		return
	}

	settings := ControlSettings{
		FocusPoint:          &at,
		OneShot:             userInitiated,
		MonitorSceneChanges: userInitiated,
	}

	// ユーザーの手動選択はシーン変化で自動的に解除される
	m.sceneArmed = userInitiated

	if err := m.deps.Controller.Apply(ctx, m.activeDevice, settings); err != nil {
		// デバイスをロックできない場合は表面化せずログのみ
		log.Printf("フォーカス・露出の設定に失敗しました: %v", err)
	}
}

// SetHDR は動画モードでのHDR記録を切り替え、実効状態を返す
func (m *DefaultManager) SetHDR(_ context.Context, enabled bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireRunningLocked(); err != nil {
		return false, err
	}
	if m.mode != ModeMotion {
		return false, fmt.Errorf("HDRは動画モードでのみ変更できます")
	}

	m.hdrPreferred = enabled
	effective, err := m.motion.SetHDR(enabled)
	if err != nil {
		return false, err
	}

	m.recomputeCapabilitiesLocked()
	m.savePrefsLocked()
	return effective, nil
}

// CapturePhoto は静止画をキャプチャする
// トポロジーは変更せず、現在のモードに対応する出力へ委譲する
func (m *DefaultManager) CapturePhoto(ctx context.Context, features PhotoFeatures) (Photo, error) {
	m.mu.Lock()
	if m.status != StatusRunning {
		m.mu.Unlock()
		return Photo{}, ErrNotRunning
	}
	if m.mode != ModeStill {
		m.mu.Unlock()
		return Photo{}, fmt.Errorf("静止画モードではありません")
	}
	still := m.still
	m.mu.Unlock()

	// 完了待機はロックの外：他の操作をブロックしない
	return still.Capture(ctx, features)
}

// StartRecording は動画記録を開始する
func (m *DefaultManager) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRunning {
		return ErrNotRunning
	}
	if m.mode != ModeMotion {
		return fmt.Errorf("動画モードではありません")
	}

	return m.motion.StartRecording(ctx)
}

// StopRecording は動画記録を停止し、結果を返す
func (m *DefaultManager) StopRecording(ctx context.Context) (Clip, error) {
	m.mu.Lock()
	if m.mode != ModeMotion {
		m.mu.Unlock()
		return Clip{}, fmt.Errorf("動画モードではありません")
	}
	motion := m.motion
	m.mu.Unlock()

	// 完了待機はロックの外：他の操作をブロックしない
	return motion.StopRecording(ctx)
}

// Status は現在のセッション状態を返す
func (m *DefaultManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentMode は現在の動作モードを返す
func (m *DefaultManager) CurrentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Capabilities は現在の能力記述子を返す
func (m *DefaultManager) Capabilities() Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capabilitiesLocked()
}

// Activity は現在のアクティビティを返す
func (m *DefaultManager) Activity() Activity {
	m.mu.Lock()
	out := m.outputForMode(m.mode)
	m.mu.Unlock()
	return out.Activity()
}

// IsInterrupted は割り込み中かどうかを返す
func (m *DefaultManager) IsInterrupted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

// HDREnabled は実効的なHDR状態を返す
func (m *DefaultManager) HDREnabled() bool {
	return m.motion.HDREnabled()
}

// ActiveDevice は現在のビデオデバイスを返す
func (m *DefaultManager) ActiveDevice() (device.Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeDevice.ID == "" {
		return device.Device{}, false
	}
	return m.activeDevice, true
}

// Subscribe は統合イベントの購読チャンネルと解除関数を返す
func (m *DefaultManager) Subscribe() (<-chan Event, func()) {
	return m.hub.Subscribe()
}

// RestartCount は実行時エラーからの自動再開の回数を返す
func (m *DefaultManager) RestartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

// HandleInterruptionBegan は割り込み開始信号を処理する
// リソース競合を意味する理由のときのみ割り込み状態に入る
func (m *DefaultManager) HandleInterruptionBegan(reason InterruptionReason) {
	if !reason.Contention() {
		log.Printf("無害な割り込み信号を無視します: %s", reason)
		return
	}

	m.mu.Lock()
	if m.status != StatusRunning {
		m.mu.Unlock()
		return
	}
	m.interrupted = true
	m.status = StatusInterrupted
	m.mu.Unlock()

	m.publishInterruption(true)
	m.publishStatus(StatusInterrupted)
}

// HandleInterruptionEnded は割り込み終了信号を処理する
func (m *DefaultManager) HandleInterruptionEnded() {
	m.mu.Lock()
	if !m.interrupted {
		m.mu.Unlock()
		return
	}
	m.interrupted = false
	m.status = StatusRunning
	m.mu.Unlock()

	m.publishInterruption(false)
	m.publishStatus(StatusRunning)
}

// HandleRuntimeError はパイプラインの予期しない停止を処理する
// 唯一の自動・無催促の復旧経路：停止していたら再開を試みる
func (m *DefaultManager) HandleRuntimeError(err error) {
	log.Printf("実行時エラーが発生しました: %v", err)

	m.mu.Lock()
	if m.status == StatusStopped || m.status == StatusFailed {
		m.mu.Unlock()
		return
	}

	s := m.session
	restartErr := func() error {
		if err := s.BeginConfiguration(); err != nil {
			return err
		}
		if err := s.SetRunning(true); err != nil {
			s.RollbackConfiguration()
			return err
		}
		if err := s.CommitConfiguration(); err != nil {
			s.RollbackConfiguration()
			return err
		}
		return nil
	}()

	if restartErr != nil {
		log.Printf("セッションの自動再開に失敗しました: %v", restartErr)
		m.mu.Unlock()
		return
	}

	// 出力を再構成してパイプラインを立て直す
	active := m.outputForMode(m.mode)
	if err := active.UpdateConfiguration(m.activeDevice); err != nil {
		log.Printf("自動再開後の出力再構成に失敗しました: %v", err)
	}

	m.restarts++
	m.status = StatusRunning
	m.interrupted = false
	m.mu.Unlock()

	m.publishStatus(StatusRunning)
}

// startListenersLocked はセッション寿命のリスナーを開始する（ロック済み前提）
// 二重購読しないよう、既存のリスナーがあれば何もしない
func (m *DefaultManager) startListenersLocked() {
	if m.listenerStop != nil {
		return
	}
	stopCh := make(chan struct{})
	m.listenerStop = stopCh

	// 優先デバイス変更への追従
	m.listenerWg.Add(1)
	go func() {
		defer m.listenerWg.Done()
		changes := m.deps.Lookup.PreferredDeviceChanges()
		for {
			select {
			case <-stopCh:
				return
			case dev, ok := <-changes:
				if !ok {
					return
				}
				if err := m.SwitchDevice(context.Background(), dev); err != nil {
					log.Printf("優先デバイスへの切り替えに失敗しました: %v", err)
				}
			}
		}
	}()

	// シーン変化によるフォーカスの自動緩和
	if m.deps.SceneChanges != nil {
		m.listenerWg.Add(1)
		go func() {
			defer m.listenerWg.Done()
			for {
				select {
				case <-stopCh:
					return
				case _, ok := <-m.deps.SceneChanges:
					if !ok {
						return
					}
					m.relaxFocusOnSceneChange()
				}
			}
		}()
	}
}

// relaxFocusOnSceneChange はシーン変化時、ユーザーの手動フォーカスを
// 継続自動モードへ戻す
func (m *DefaultManager) relaxFocusOnSceneChange() {
	m.mu.Lock()
	armed := m.sceneArmed
	m.mu.Unlock()

	if !armed {
		return
	}

	m.FocusAndExpose(context.Background(), Point{X: 0.5, Y: 0.5}, false)
}

// resetRotationLocked はデバイスに合わせて回転追跡を作り直す（ロック済み前提）
func (m *DefaultManager) resetRotationLocked(dev device.Device) {
	if m.tracker != nil {
		m.tracker.Close()
	}

	src := m.deps.OrientationSource(dev)
	tracker := NewRotationTracker(dev, src)
	m.tracker = tracker

	// 現在の角度を即座に反映する
	angle := tracker.Angle()
	m.applyRotationLocked(angle)

	// 角度変化の転送（記録用は出力へ、プレビュー用は購読者へ）
	m.listenerWg.Add(1)
	go func() {
		defer m.listenerWg.Done()
		for a := range tracker.Changes() {
			m.mu.Lock()
			// デバイス切り替え後に残っていた旧トラッカーのイベントは捨てる
			if m.tracker == tracker {
				m.applyRotationLocked(a)
			}
			m.mu.Unlock()
		}
	}()
}

// applyRotationLocked は回転角を出力と購読者へ配る（ロック済み前提）
func (m *DefaultManager) applyRotationLocked(a RotationAngle) {
	m.still.SetRotationAngle(a.Capture)
	m.motion.SetRotationAngle(a.Capture)
	m.hub.Publish(Event{Kind: EventRotation, PreviewAngle: a.Preview})
}

// requireRunningLocked はセッションが動作中であることを要求する（ロック済み前提）
func (m *DefaultManager) requireRunningLocked() error {
	if m.status != StatusRunning && m.status != StatusInterrupted {
		return ErrNotRunning
	}
	return nil
}

// outputForMode はモードに対応する出力を返す
func (m *DefaultManager) outputForMode(mode Mode) Output {
	if mode == ModeMotion {
		return m.motion
	}
	return m.still
}

// otherMode は反対側のモードを返す
func otherMode(mode Mode) Mode {
	if mode == ModeMotion {
		return ModeStill
	}
	return ModeMotion
}

// presetForMode はモードと品質設定からプリセットを決める
func (m *DefaultManager) presetForMode(mode Mode) Preset {
	if mode == ModeStill {
		return PresetPhoto
	}
	if m.quality == QualityStandard {
		return PresetStandard
	}
	return PresetHigh
}

// capabilitiesLocked はアクティブ出力の能力記述子を返す（ロック済み前提）
func (m *DefaultManager) capabilitiesLocked() Capabilities {
	caps := m.outputForMode(m.mode).Capabilities()
	if m.mode == ModeStill {
		// HDR記録は動画モードのみ
		caps.SupportsHDR = false
	}
	return caps
}

// recomputeCapabilitiesLocked は能力記述子を再計算して配信する（ロック済み前提）
// トポロジーかアクティブデバイスが変わるたびに呼ばれる
func (m *DefaultManager) recomputeCapabilitiesLocked() {
	caps := m.capabilitiesLocked()
	m.hub.Publish(Event{Kind: EventCapabilities, Capabilities: &caps})
}

// savePrefsLocked は現在の選択を永続設定へ保存する（ロック済み前提）
func (m *DefaultManager) savePrefsLocked() {
	p := prefs.Preferences{
		Mode:         string(m.mode),
		HDR:          m.hdrPreferred,
		Quality:      string(m.quality),
		LastDeviceID: m.activeDevice.ID,
	}
	if err := m.deps.Prefs.Save(p); err != nil {
		log.Printf("設定の保存に失敗しました: %v", err)
	}
}

// publishActivity はアクティビティ変化を配信する
func (m *DefaultManager) publishActivity(a Activity) {
	m.hub.Publish(Event{Kind: EventActivity, Activity: &a})
}

// publishStatus はセッション状態を配信する（ロックは取得しない）
func (m *DefaultManager) publishStatus(status Status) {
	m.hub.Publish(Event{Kind: EventStatus, Status: status})
}

// publishInterruption は割り込み状態を配信する
func (m *DefaultManager) publishInterruption(interrupted bool) {
	m.hub.Publish(Event{Kind: EventInterruption, Interrupted: &interrupted})
}

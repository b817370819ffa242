package capture

import (
	"fmt"

	"satsuei/internal/device"
)

// Input はセッションに接続された1つのデバイス入力を表す
type Input struct {
	Device device.Device
}

// Output はセッションに接続されるキャプチャ出力の共通インターフェース
// StillOutput と MotionOutput が実装する
type Output interface {
	// Mode はこの出力が対応する動作モードを返す
	Mode() Mode

	// UpdateConfiguration はデバイス・モード変更後に呼ばれ、
	// 能力記述子を再計算し新しいデバイスが対応する最良の設定を適用する
	UpdateConfiguration(dev device.Device) error

	// SetRotationAngle は出力へ記録用回転角（度）を適用する
	SetRotationAngle(degrees int)

	// Activity は現在のアクティビティを返す
	Activity() Activity

	// Capabilities は現在の能力記述子を返す
	Capabilities() Capabilities
}

// Session はライブキャプチャパイプラインのトポロジーを表す
//
// Manager のみが所有し、Manager のミューテックス配下でのみ変更される。
// 全ての変更は BeginConfiguration / CommitConfiguration で囲み、
// コミット時に不変条件（ビデオ入力・オーディオ入力は各高々1つ、
// 出力はモードごとに高々1つ）が検証される。
type Session struct {
	preset      Preset
	videoInput  *Input
	audioInput  *Input
	outputs     []Output
	running     bool
	configuring bool

	// BeginConfiguration時点のスナップショット（Rollback用）
	snapshot *sessionSnapshot
}

// sessionSnapshot は構成変更前のトポロジーの写しを保持する
type sessionSnapshot struct {
	preset     Preset
	videoInput *Input
	audioInput *Input
	outputs    []Output
	running    bool
}

// NewSession は新しい停止状態のSessionを作成する
func NewSession() *Session {
	return &Session{
		preset: PresetPhoto,
	}
}

// BeginConfiguration は原子的な構成変更ブロックを開始する
// ブロックは入れ子にできない
func (s *Session) BeginConfiguration() error {
	if s.configuring {
		return fmt.Errorf("構成変更ブロックが既に開始されています")
	}

	outputs := make([]Output, len(s.outputs))
	copy(outputs, s.outputs)
	s.snapshot = &sessionSnapshot{
		preset:     s.preset,
		videoInput: s.videoInput,
		audioInput: s.audioInput,
		outputs:    outputs,
		running:    s.running,
	}

	s.configuring = true
	return nil
}

// RollbackConfiguration は構成変更ブロックを破棄し、
// BeginConfiguration時点のトポロジーへ戻す
func (s *Session) RollbackConfiguration() {
	if !s.configuring || s.snapshot == nil {
		return
	}

	s.preset = s.snapshot.preset
	s.videoInput = s.snapshot.videoInput
	s.audioInput = s.snapshot.audioInput
	s.outputs = s.snapshot.outputs
	s.running = s.snapshot.running
	s.snapshot = nil
	s.configuring = false
}

// CommitConfiguration は構成変更ブロックを確定する
// 不変条件に違反している場合はエラーを返し、構成は確定されない
func (s *Session) CommitConfiguration() error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックが開始されていません")
	}

	if err := s.validate(); err != nil {
		return fmt.Errorf("セッション構成が不正: %w", err)
	}

	s.snapshot = nil
	s.configuring = false
	return nil
}

// validate はトポロジーの不変条件を検証する
func (s *Session) validate() error {
	if s.running && s.videoInput == nil {
		return fmt.Errorf("動作中のセッションにビデオ入力がありません")
	}

	seen := make(map[Mode]bool)
	for _, o := range s.outputs {
		if seen[o.Mode()] {
			return fmt.Errorf("モード %s の出力が複数接続されています", o.Mode())
		}
		seen[o.Mode()] = true
	}

	return nil
}

// SetVideoInput はビデオ入力を設定する（既存の入力は置き換えられる）
func (s *Session) SetVideoInput(in *Input) error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックの外で入力を変更できません")
	}
	if in != nil && in.Device.Kind != device.KindVideo {
		return fmt.Errorf("ビデオ入力に %s デバイスは接続できません", in.Device.Kind)
	}
	s.videoInput = in
	return nil
}

// SetAudioInput はオーディオ入力を設定する
func (s *Session) SetAudioInput(in *Input) error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックの外で入力を変更できません")
	}
	if in != nil && in.Device.Kind != device.KindAudio {
		return fmt.Errorf("オーディオ入力に %s デバイスは接続できません", in.Device.Kind)
	}
	s.audioInput = in
	return nil
}

// AddOutput は出力を接続する
func (s *Session) AddOutput(o Output) error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックの外で出力を変更できません")
	}
	for _, existing := range s.outputs {
		if existing == o {
			return fmt.Errorf("出力は既に接続されています")
		}
	}
	s.outputs = append(s.outputs, o)
	return nil
}

// RemoveOutput は出力を切り離す（接続されていなければ何もしない）
func (s *Session) RemoveOutput(o Output) error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックの外で出力を変更できません")
	}
	for i, existing := range s.outputs {
		if existing == o {
			s.outputs = append(s.outputs[:i], s.outputs[i+1:]...)
			return nil
		}
	}
	return nil
}

// SetPreset は品質プリセットを設定する
func (s *Session) SetPreset(p Preset) error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックの外でプリセットを変更できません")
	}
	s.preset = p
	return nil
}

// SetRunning は動作フラグを設定する
func (s *Session) SetRunning(running bool) error {
	if !s.configuring {
		return fmt.Errorf("構成変更ブロックの外で動作状態を変更できません")
	}
	s.running = running
	return nil
}

// VideoInput は現在のビデオ入力を返す
func (s *Session) VideoInput() *Input {
	return s.videoInput
}

// AudioInput は現在のオーディオ入力を返す
func (s *Session) AudioInput() *Input {
	return s.audioInput
}

// OutputForMode は指定モードに対応する接続済み出力を返す
func (s *Session) OutputForMode(m Mode) (Output, bool) {
	for _, o := range s.outputs {
		if o.Mode() == m {
			return o, true
		}
	}
	return nil, false
}

// Outputs は接続済み出力の一覧を返す
func (s *Session) Outputs() []Output {
	outputs := make([]Output, len(s.outputs))
	copy(outputs, s.outputs)
	return outputs
}

// Preset は現在の品質プリセットを返す
func (s *Session) Preset() Preset {
	return s.preset
}

// Running はセッションが動作中かどうかを返す
func (s *Session) Running() bool {
	return s.running
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"satsuei/internal/capture"
	"satsuei/internal/config"
	"satsuei/internal/device"
	"satsuei/internal/generated"
)

// Handler は生成されたServerInterfaceを実装する
type Handler struct {
	config  *config.Config
	manager capture.Manager
	lookup  device.Lookup
}

// NewHandler は新しいHandlerを作成する
func NewHandler(cfg *config.Config, manager capture.Manager, lookup device.Lookup) *Handler {
	return &Handler{
		config:  cfg,
		manager: manager,
		lookup:  lookup,
	}
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	response := generated.HealthResponse{
		Status:    generated.Healthy,
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus はセッション状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.statusResponse())
}

// GetDevices はデバイス一覧取得エンドポイントの実装
func (h *Handler) GetDevices(c *gin.Context, params generated.GetDevicesParams) {
	devices := make([]generated.DeviceInfo, 0)

	includeVideo := params.Kind == nil || *params.Kind == generated.Video
	includeAudio := params.Kind == nil || *params.Kind == generated.Audio

	if includeVideo {
		videos, err := h.lookup.VideoDevices(c.Request.Context())
		if err != nil {
			h.errorJSON(c, http.StatusBadGateway, "device_enumeration_failed", "デバイスの列挙に失敗しました", err)
			return
		}
		for _, d := range videos {
			devices = append(devices, convertDevice(d))
		}
	}

	if includeAudio {
		audio, err := h.lookup.DefaultAudioDevice(c.Request.Context())
		if err == nil && audio != nil {
			devices = append(devices, convertDevice(*audio))
		}
	}

	c.JSON(http.StatusOK, generated.DevicesResponse{Devices: devices})
}

// StartSession はセッション開始エンドポイントの実装
func (h *Handler) StartSession(c *gin.Context) {
	var req generated.StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.errorJSON(c, http.StatusBadRequest, "invalid_request", "リクエストの解析に失敗しました", err)
			return
		}
	}

	mode := capture.Mode("")
	if req.Mode != nil {
		mode = capture.Mode(*req.Mode)
	}
	hdr := req.Hdr != nil && *req.Hdr

	if err := h.manager.Start(c.Request.Context(), mode, hdr); err != nil {
		if errors.Is(err, capture.ErrUnauthorized) {
			h.errorJSON(c, http.StatusUnauthorized, "unauthorized", "キャプチャ権限がありません", err)
			return
		}
		h.errorJSON(c, http.StatusInternalServerError, "setup_failed", "セッションの開始に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, h.statusResponse())
}

// StopSession はセッション停止エンドポイントの実装
func (h *Handler) StopSession(c *gin.Context) {
	if err := h.manager.Stop(c.Request.Context()); err != nil {
		h.errorJSON(c, http.StatusInternalServerError, "stop_failed", "セッションの停止に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, h.statusResponse())
}

// SetMode はモード切り替えエンドポイントの実装
func (h *Handler) SetMode(c *gin.Context) {
	var req generated.ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorJSON(c, http.StatusBadRequest, "invalid_request", "リクエストの解析に失敗しました", err)
		return
	}

	mode := capture.Mode(req.Mode)
	if !mode.Valid() {
		h.errorJSON(c, http.StatusBadRequest, "invalid_mode", "無効なモードです", nil)
		return
	}

	if err := h.manager.SetMode(c.Request.Context(), mode); err != nil {
		if errors.Is(err, capture.ErrNotRunning) {
			h.errorJSON(c, http.StatusConflict, "not_running", "セッションが開始されていません", err)
			return
		}
		h.errorJSON(c, http.StatusInternalServerError, "mode_change_failed", "モードの切り替えに失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, h.statusResponse())
}

// NextDevice はデバイス切り替えエンドポイントの実装
func (h *Handler) NextDevice(c *gin.Context) {
	if err := h.manager.NextDevice(c.Request.Context()); err != nil {
		if errors.Is(err, capture.ErrNotRunning) {
			h.errorJSON(c, http.StatusConflict, "not_running", "セッションが開始されていません", err)
			return
		}
		h.errorJSON(c, http.StatusBadGateway, "device_change_failed", "デバイスの切り替えに失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, h.statusResponse())
}

// SetHdr はHDR切り替えエンドポイントの実装
func (h *Handler) SetHdr(c *gin.Context) {
	var req generated.HdrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorJSON(c, http.StatusBadRequest, "invalid_request", "リクエストの解析に失敗しました", err)
		return
	}

	effective, err := h.manager.SetHDR(c.Request.Context(), req.Enabled)
	if err != nil {
		h.errorJSON(c, http.StatusConflict, "hdr_change_failed", "HDRの切り替えに失敗しました", err)
		return
	}

	// レスポンスは希望値ではなく実効状態を返す
	c.JSON(http.StatusOK, generated.HdrResponse{Enabled: effective})
}

// SetFocus はフォーカス・露出指定エンドポイントの実装
func (h *Handler) SetFocus(c *gin.Context) {
	var req generated.FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorJSON(c, http.StatusBadRequest, "invalid_request", "リクエストの解析に失敗しました", err)
		return
	}

	// 失敗は表面化しない（ベストエフォート）
	h.manager.FocusAndExpose(c.Request.Context(), capture.Point{X: float64(req.X), Y: float64(req.Y)}, true)

	c.Status(http.StatusNoContent)
}

// CapturePhoto は静止画キャプチャエンドポイントの実装
func (h *Handler) CapturePhoto(c *gin.Context) {
	var req generated.PhotoRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.errorJSON(c, http.StatusBadRequest, "invalid_request", "リクエストの解析に失敗しました", err)
			return
		}
	}

	features := capture.PhotoFeatures{
		LiveCompanion: req.LiveCompanion != nil && *req.LiveCompanion,
		Proxy:         req.Proxy != nil && *req.Proxy,
	}

	photo, err := h.manager.CapturePhoto(c.Request.Context(), features)
	if err != nil {
		if errors.Is(err, capture.ErrNotRunning) {
			h.errorJSON(c, http.StatusConflict, "not_running", "セッションが開始されていません", err)
			return
		}
		h.errorJSON(c, http.StatusInternalServerError, "capture_failed", "静止画キャプチャに失敗しました", err)
		return
	}

	// 画像データは出力先へ書き出し、レスポンスはメタデータのみ返す
	path := filepath.Join(h.config.Capture.OutputDir, fmt.Sprintf("photo-%s.jpg", photo.ID))
	if err := os.WriteFile(path, photo.Data, 0o644); err != nil {
		h.errorJSON(c, http.StatusInternalServerError, "write_failed", "画像の保存に失敗しました", err)
		return
	}

	response := generated.PhotoResponse{
		Id:    photo.ID,
		Path:  path,
		Proxy: photo.Proxy,
	}
	if photo.CompanionPath != "" {
		response.CompanionPath = &photo.CompanionPath
	}

	c.JSON(http.StatusOK, response)
}

// StartRecording は動画記録開始エンドポイントの実装
func (h *Handler) StartRecording(c *gin.Context) {
	if err := h.manager.StartRecording(c.Request.Context()); err != nil {
		h.errorJSON(c, http.StatusConflict, "recording_start_failed", "記録の開始に失敗しました", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// StopRecording は動画記録停止エンドポイントの実装
func (h *Handler) StopRecording(c *gin.Context) {
	clip, err := h.manager.StopRecording(c.Request.Context())
	if err != nil {
		h.errorJSON(c, http.StatusConflict, "recording_stop_failed", "記録の停止に失敗しました", err)
		return
	}

	c.JSON(http.StatusOK, generated.ClipResponse{
		Id:              clip.ID,
		Path:            clip.Path,
		DurationSeconds: float32(clip.Duration.Seconds()),
	})
}

// statusResponse は現在のセッション状態からレスポンスを組み立てる
func (h *Handler) statusResponse() generated.StatusResponse {
	caps := h.manager.Capabilities()
	activity := h.manager.Activity()

	response := generated.StatusResponse{
		Status:      generated.StatusResponseStatus(h.manager.Status()),
		Mode:        string(h.manager.CurrentMode()),
		Interrupted: h.manager.IsInterrupted(),
		Hdr:         h.manager.HDREnabled(),
		Capabilities: generated.CapabilitiesInfo{
			SupportsExtendedCapture: caps.SupportsExtendedCapture,
			SupportsHdr:             caps.SupportsHDR,
			MaxWidth:                caps.MaxWidth,
			MaxHeight:               caps.MaxHeight,
		},
		Activity:  convertActivity(activity),
		Timestamp: time.Now(),
	}

	if dev, ok := h.manager.ActiveDevice(); ok {
		info := convertDevice(dev)
		response.Device = &info
	}

	return response
}

// errorJSON はエラーレスポンスを返す
func (h *Handler) errorJSON(c *gin.Context, status int, code, message string, err error) {
	response := generated.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		details := err.Error()
		response.Details = &details
	}
	c.JSON(status, response)
}

// convertDevice はデバイス情報を生成されたスキーマに変換する
func convertDevice(d device.Device) generated.DeviceInfo {
	return generated.DeviceInfo{
		Id:   d.ID,
		Name: d.Name,
		Path: d.Path,
		Kind: string(d.Kind),
	}
}

// convertActivity はアクティビティを生成されたスキーマに変換する
func convertActivity(a capture.Activity) generated.ActivityInfo {
	info := generated.ActivityInfo{
		Kind: string(a.Kind),
	}
	if a.WillFireImminently {
		info.WillFireImminently = boolPtr(true)
	}
	if a.IsExtendedCapture {
		info.IsExtendedCapture = boolPtr(true)
	}
	if a.Elapsed > 0 {
		elapsed := float32(a.Elapsed.Seconds())
		info.ElapsedSeconds = &elapsed
	}
	return info
}

// boolPtr は真偽値のポインタを返すヘルパー関数
func boolPtr(b bool) *bool {
	return &b
}

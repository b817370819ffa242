package capture

import (
	"satsuei/internal/device"
	"satsuei/internal/prefs"
)

// NewProductionDeps は本番用のDepsを組み立てる
// V4L2とffmpegを使用する実デバイス構成
func NewProductionDeps(lookup device.Lookup, prefsPath, outputDir, monitorDevicePath string, defaultMode Mode) Deps {
	return Deps{
		Lookup:        lookup,
		Authorizer:    NewDeviceNodeAuthorizer(),
		Prefs:         prefs.NewFileStore(prefsPath),
		StillEndpoint: NewV4L2StillEndpoint(outputDir),
		ClipEndpoint:  NewV4L2ClipEndpoint(outputDir),
		Controller:    NewV4L2Controller(),
		Interruptions: NewDeviceBusySource(monitorDevicePath),
		OrientationSource: func(device.Device) OrientationSource {
			return NewIIOOrientationSource()
		},
		DefaultMode: defaultMode,
	}
}

// NewMockDeps はテスト用のDepsを組み立てる
// 全ての依存がインメモリのモック実装になる
func NewMockDeps(lookup device.Lookup) Deps {
	return Deps{
		Lookup:        lookup,
		Authorizer:    NewMockAuthorizer(true),
		Prefs:         prefs.NewMemoryStore(),
		StillEndpoint: NewMockStillEndpoint(),
		ClipEndpoint:  NewMockClipEndpoint(),
		Controller:    NewMockController(),
		Interruptions: NewMockInterruptionSource(),
		OrientationSource: func(device.Device) OrientationSource {
			return NewMockOrientationSource(OrientationLandscape)
		},
	}
}

package violation

import "github.com/sentrynode/sentrynode/internal/model"

// DeviceResult is the device sub-analyzer's verdict.
type DeviceResult struct {
	Score   float64
	Reasons []string
}

// AnalyzeDevice always returns a zero score with no reasons; it does not
// inspect device_info or count distinct fingerprints.
func AnalyzeDevice(_ []model.Connection) DeviceResult {
	return DeviceResult{}
}

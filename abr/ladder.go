package abr

import "github.com/zsiec/vstream/media"

// DefaultLadder is the fixed quality-ladder template that
// Controller.SetSourceResolution filters down to the levels the source
// actually supports. Ordered from highest to lowest quality.
var DefaultLadder = []media.QualityLevel{
	{Height: 2160, Width: 3840, TargetFPS: 60, MinBitrate: 8_000_000, MaxBitrate: 20_000_000, StartBitrate: 12_000_000},
	{Height: 1440, Width: 2560, TargetFPS: 60, MinBitrate: 5_000_000, MaxBitrate: 10_000_000, StartBitrate: 7_000_000},
	{Height: 1080, Width: 1920, TargetFPS: 30, MinBitrate: 3_000_000, MaxBitrate: 6_000_000, StartBitrate: 4_500_000},
	{Height: 720, Width: 1280, TargetFPS: 30, MinBitrate: 1_500_000, MaxBitrate: 3_000_000, StartBitrate: 2_000_000},
	{Height: 480, Width: 854, TargetFPS: 30, MinBitrate: 500_000, MaxBitrate: 1_200_000, StartBitrate: 800_000},
}

// buildLadder returns the subset of template with Height <= sourceHeight,
// preserving order (highest to lowest).
func buildLadder(template []media.QualityLevel, sourceHeight int) []media.QualityLevel {
	var out []media.QualityLevel
	for _, lvl := range template {
		if lvl.Height <= sourceHeight {
			out = append(out, lvl)
		}
	}
	return out
}

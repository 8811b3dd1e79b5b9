package ffmpeg

import "strconv"

// Params holds the fixed encoding parameters for a capture session.
type Params struct {
	Display      string // X display source, e.g. :10.0
	FrameRate    int
	Size         string // WxH
	VideoCodec   string
	CRF          int
	Preset       string
	OutputFormat string
	Output       string
	LogLevel     string
}

// DefaultParams returns lossless, fastest-preset x264 in MPEG-TS on stdout.
func DefaultParams() Params {
	return Params{
		Display:      ":10.0",
		FrameRate:    25,
		Size:         "1024x768",
		VideoCodec:   "libx264",
		CRF:          0,
		Preset:       "ultrafast",
		OutputFormat: "mpegts",
		Output:       "pipe:1",
		LogLevel:     "level+warning",
	}
}

// Args builds the ffmpeg argument list for capturing with capability.
func (p Params) Args(capability Capability) []string {
	args := []string{"-hide_banner"}
	if p.LogLevel != "" {
		args = append(args, "-loglevel", p.LogLevel)
	}

	args = append(args, "-f", string(capability))
	if p.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(p.FrameRate))
	}
	args = append(args, "-i", p.Display)

	if p.Size != "" {
		args = append(args, "-s", p.Size)
	}
	args = append(args,
		"-c:v", p.VideoCodec,
		"-crf", strconv.Itoa(p.CRF),
		"-preset", p.Preset,
		"-f", p.OutputFormat,
		p.Output,
	)
	return args
}

// FormatsQueryArgs returns the arguments used to list supported formats.
func FormatsQueryArgs() []string {
	return []string{"-hide_banner", "-formats"}
}

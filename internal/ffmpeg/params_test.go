package ffmpeg

import (
	"slices"
	"strings"
	"testing"
)

func TestDefaultParamsArgs(t *testing.T) {
	got := DefaultParams().Args(CapabilityX11Grab)
	want := strings.Fields("-hide_banner -loglevel level+warning -f x11grab -framerate 25 -i :10.0 " +
		"-s 1024x768 -c:v libx264 -crf 0 -preset ultrafast -f mpegts pipe:1")

	if !slices.Equal(got, want) {
		t.Errorf("Args() =\n  %v\nwant\n  %v", got, want)
	}
}

func TestParamsArgsOverrides(t *testing.T) {
	p := DefaultParams()
	p.Display = ":0.0"
	p.LogLevel = ""
	p.Size = ""

	args := strings.Join(p.Args(CapabilityXCBGrab), " ")
	if !strings.Contains(args, "-f xcbgrab -framerate 25 -i :0.0") {
		t.Errorf("unexpected input args: %s", args)
	}
	if strings.Contains(args, "-loglevel") || strings.Contains(args, " -s ") {
		t.Errorf("empty fields should be omitted: %s", args)
	}
}

package ffmpeg

import (
	"strconv"
	"strings"
)

// Progress holds the values ffmpeg reports on its stats line.
type Progress struct {
	Frame   int64
	FPS     float64
	Speed   float64
	Dropped int64
	Dup     int64
}

// ParseProgress parses an ffmpeg stats line such as
//
//	frame=  120 fps= 25 q=-1.0 size=  1024kB time=00:00:04.80 bitrate=1747.6kbits/s speed=   1x
//
// or a single "key=value" line from -progress output. ok is false when the
// line carries no frame or fps information.
func ParseProgress(line string, prev Progress) (p Progress, ok bool) {
	p = prev
	fields := progressFields(line)
	if len(fields) == 0 {
		return p, false
	}

	for key, value := range fields {
		switch key {
		case "frame":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.Frame = v
				ok = true
			}
		case "fps":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				p.FPS = v
				ok = true
			}
		case "speed":
			if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
				p.Speed = v
				ok = true
			}
		case "drop", "drop_frames":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.Dropped = v
				ok = true
			}
		case "dup", "dup_frames":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				p.Dup = v
				ok = true
			}
		}
	}
	return p, ok
}

// progressFields splits "key= value key2=value2" into a map. ffmpeg pads
// values with spaces after the '=', so a value may be the next token.
func progressFields(line string) map[string]string {
	tokens := strings.Fields(line)
	fields := make(map[string]string)

	for i := 0; i < len(tokens); i++ {
		key, value, found := strings.Cut(tokens[i], "=")
		if !found || key == "" {
			continue
		}
		if value == "" && i+1 < len(tokens) && !strings.Contains(tokens[i+1], "=") {
			i++
			value = tokens[i]
		}
		fields[key] = value
	}
	return fields
}

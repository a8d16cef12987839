package transcoder

import (
	"bytes"
	"regexp"
	"strconv"
)

// ffmpeg status lines look like:
// frame=  240 fps= 60 q=28.0 size=  1024kB time=00:00:08.00 bitrate=1048.6kbits/s speed=2x
var reElapsed = regexp.MustCompile(`time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseElapsed extracts the elapsed time field (HH:MM:SS[.ff]) from an
// encoder status line and returns it in seconds.
func ParseElapsed(line string) (float64, bool) {
	m := reElapsed.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

// scanStatusLines is a bufio.SplitFunc that breaks on either \r or \n,
// since ffmpeg rewrites its status line with carriage returns.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last n non-empty lines written to it.
type tailBuffer struct {
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) add(line string) {
	if line == "" {
		return
	}
	if len(b.lines) == b.max {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:b.max-1]
	}
	b.lines = append(b.lines, line)
}

func (b *tailBuffer) snapshot() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

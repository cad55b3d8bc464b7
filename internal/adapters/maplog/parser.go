// Package maplog extracts map metadata from the game client's log file and
// optionally watches it for newly generated areas.
package maplog

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// genLine matches the area-generation line the client writes when a map is
// entered, e.g.
//
//	2026/08/30 21:14:03 ... Generating level 80 area "MapAzmerianRanges" with seed 1234567
var genLine = regexp.MustCompile(
	`(?i)^(?P<ts>\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}).*?Generating level (?P<lvl>\d+) area "(?P<code>[^"]+)" with seed (?P<seed>\d+)`)

// Info is the metadata parsed from one generation line.
type Info struct {
	Timestamp string
	Level     int
	Code      string
	Name      string
	Seed      int64
	Raw       string
}

// CodeToTitle turns an area code into a display name:
// "MapAzmerianRanges" -> "Azmerian Ranges".
func CodeToTitle(code string) string {
	code = strings.TrimPrefix(code, "Map")
	var b strings.Builder
	runes := []rune(code)
	for i, ch := range runes {
		if i > 0 && unicode.IsUpper(ch) && !unicode.IsUpper(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(ch)
	}
	return strings.TrimSpace(b.String())
}

// LastMap scans the tail of the client log for the most recent generation
// line. Returns ErrNoMapFound when the window holds none.
func LastMap(path string, scanBytes int) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrLogUnreadable, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrLogUnreadable, err)
	}
	defer f.Close()

	offset := stat.Size() - int64(scanBytes)
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, 0); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrLogUnreadable, err)
	}

	// A plain Read may return short on a window this large; the whole tail
	// has to land in the buffer or old generation lines go missing.
	buf := make([]byte, stat.Size()-offset)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrLogUnreadable, err)
	}

	lines := strings.Split(string(buf), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if info, ok := parseLine(lines[i]); ok {
			return info, nil
		}
	}
	return Info{}, ErrNoMapFound
}

func parseLine(line string) (Info, bool) {
	m := genLine.FindStringSubmatch(line)
	if m == nil {
		return Info{}, false
	}
	lvl, _ := strconv.Atoi(m[2])
	seed, _ := strconv.ParseInt(m[4], 10, 64)
	return Info{
		Timestamp: m[1],
		Level:     lvl,
		Code:      m[3],
		Name:      CodeToTitle(m[3]),
		Seed:      seed,
		Raw:       line,
	}, true
}

package logging

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Tail returns at most maxLines from the end of the file at path, oldest
// first. A missing file yields no lines. When minLevel is set, only lines
// carrying that level or a more severe one are kept.
func Tail(path string, maxLines int, minLevel string) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	threshold := -1
	if minLevel != "" {
		lvl, err := ParseLevel(minLevel)
		if err != nil {
			return nil, err
		}
		threshold = int(lvl)
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		line := scanner.Text()
		if threshold >= 0 && lineLevel(line) < threshold {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// ConsoleWriter abbreviates levels to three upper-case letters.
var levelTags = map[string]int{
	" TRC ": -1,
	" DBG ": 0,
	" INF ": 1,
	" WRN ": 2,
	" ERR ": 3,
	" FTL ": 4,
	" PNC ": 5,
}

func lineLevel(line string) int {
	for tag, lvl := range levelTags {
		if strings.Contains(line, tag) {
			return lvl
		}
	}
	return 1
}

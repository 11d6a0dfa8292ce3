package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
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

// Entry is one parsed log line.
type Entry struct {
	Component string
	Time      time.Time
	Message   string
	Raw       string
}

// Level classifies the entry by keywords in its message.
func (e Entry) Level() string {
	lower := strings.ToLower(e.Message)
	switch {
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "failed"), strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "retry"), strings.Contains(lower, "fallback"), strings.Contains(lower, "mirror"), strings.Contains(lower, "offline"):
		return "warn"
	default:
		return "info"
	}
}

const stampLayout = "2006/01/02 15:04:05.000000"

// Parse splits a "[component] 2006/01/02 15:04:05.000000 message" line. Lines
// in any other shape come back with only Message and Raw set.
func Parse(line string) Entry {
	entry := Entry{Message: line, Raw: line}
	rest := line
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "] ")
		if end < 0 {
			return entry
		}
		entry.Component = rest[1:end]
		rest = rest[end+2:]
	}
	if len(rest) >= len(stampLayout) {
		if ts, err := time.Parse(stampLayout, rest[:len(stampLayout)]); err == nil {
			entry.Time = ts
			rest = strings.TrimPrefix(rest[len(stampLayout):], " ")
		}
	}
	entry.Message = rest
	return entry
}

// Filter keeps the entries written by component; an empty component keeps
// everything.
func Filter(lines []string, component string) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := Parse(line)
		if component != "" && entry.Component != component {
			continue
		}
		out = append(out, entry)
	}
	return out
}

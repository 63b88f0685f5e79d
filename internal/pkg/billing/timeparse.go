package billing

import (
	"strconv"
	"strings"
	"time"
)

// Values above this are epoch milliseconds; below, epoch seconds.
const epochMillisThreshold = 1e12

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp reads epoch seconds, epoch millis or ISO-8601 text and
// returns the instant in UTC. nil when the node holds no usable time.
func parseTimestamp(n *Node) *time.Time {
	if n == nil {
		return nil
	}
	switch n.Type {
	case NodeNumber:
		return parseEpoch(n.Text)
	case NodeString:
		return parseTimeString(n.Text)
	}
	return nil
}

func parseTimeString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t := parseEpoch(s); t != nil {
		return t
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

func parseEpoch(s string) *time.Time {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return nil
	}
	var t time.Time
	if f > epochMillisThreshold {
		t = time.UnixMilli(int64(f)).UTC()
	} else {
		t = time.Unix(int64(f), 0).UTC()
	}
	return &t
}

func firstTimestamp(root *Node, paths []string) *time.Time {
	for _, p := range paths {
		if t := parseTimestamp(root.Get(p)); t != nil {
			return t
		}
	}
	return nil
}

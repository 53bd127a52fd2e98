package utils

import (
	"fmt"
	"strings"
	"time"
)

// MessageType selects the color of a CLI message.
type MessageType int

// The message types used across the CLI.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
	WarningMessage
)

// Terminal colors used across the CLI.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
	WarningColor = "\x1b[33m"
)

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	StatusMessage:  StatusColor,
	SuccessMessage: SuccessColor,
	ErrorMessage:   ErrorColor,
	WarningMessage: WarningColor,
}

// DecorateText wraps s in the color of msgType. Unknown types are returned
// unchanged.
func DecorateText(s string, msgType MessageType) string {
	color, ok := messageColors[msgType]
	if !ok {
		return s
	}
	return color + s + DefaultColor
}

// FormatTime renders a duration the way stage timings are reported:
// milliseconds below one second, then seconds with two decimals preceded by
// whole days, hours and minutes as needed.
func FormatTime(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	var parts []string
	for _, unit := range []struct {
		size   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
	} {
		if d >= unit.size || len(parts) > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", d/unit.size, unit.suffix))
			d %= unit.size
		}
	}
	parts = append(parts, fmt.Sprintf("%.2fs", d.Seconds()))
	return strings.Join(parts, " ")
}

// Byte size units used when reporting artifact sizes.
const (
	KiB = 1 << 10
	MiB = 1 << 20
)

// FormatBytes renders a byte count as bytes, KB or MB (binary units).
func FormatBytes(n int) string {
	switch {
	case n >= MiB:
		return fmt.Sprintf("%.2f MB", float64(n)/MiB)
	case n >= KiB:
		return fmt.Sprintf("%.1f KB", float64(n)/KiB)
	}
	return fmt.Sprintf("%d bytes", n)
}

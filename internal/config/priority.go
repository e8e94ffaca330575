package config

import (
	"fmt"
	"strings"

	"sparksched/kernel"
)

// ParsePriority maps a config priority name to a kernel priority. The empty
// string is normal. Idle is reserved for the kernel.
func ParsePriority(s string) (kernel.Priority, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return kernel.PriorityNormal, nil
	case "low":
		return kernel.PriorityLow, nil
	case "high":
		return kernel.PriorityHigh, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

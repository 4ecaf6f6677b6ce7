package config

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix string
	scale  int64
}{
	{"kib", 1 << 10},
	{"mib", 1 << 20},
	{"gib", 1 << 30},
	{"kb", 1000},
	{"mb", 1000 * 1000},
	{"gb", 1000 * 1000 * 1000},
	{"k", 1 << 10},
	{"m", 1 << 20},
	{"g", 1 << 30},
	{"b", 1},
}

// ParseSize parses sizes like "64KiB", "4MiB", "1mb" or "4096".
// "auto" and "" parse as 0, which callers treat as "use the default".
func ParseSize(s string) (int64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "auto" {
		return 0, nil
	}

	scale := int64(1)

	for _, u := range sizeUnits {
		if strings.HasSuffix(v, u.suffix) {
			scale = u.scale
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))

			break
		}
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	if n < 0 {
		return 0, fmt.Errorf("size must be non-negative, got %q", s)
	}

	if n > (1<<63-1)/scale {
		return 0, fmt.Errorf("size %q overflows", s)
	}

	return n * scale, nil
}

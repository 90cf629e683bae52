package shell

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseFloats reads a comma separated list such as "1,2.5,3".
func parseFloats(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "bad coordinate %q", p)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

// parseTimes is like parseFloats for millisecond timestamps. An empty
// string means no timestamps at all.
func parseTimes(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad timestamp %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

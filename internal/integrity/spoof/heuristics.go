// Package spoof implements the stateless single-point spoofing heuristics.
// The checks are deliberately conservative: they catch statistically
// implausible coordinate encodings, not plausible-but-falsified GPS.
package spoof

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/attendance-engine/pkg/models"
)

const (
	// maxFractionDigits is the realistic bound on GPS fix precision.
	// Consumer receivers produce 5-7 fractional digits; more than 8
	// means the value was synthesized.
	maxFractionDigits = 8

	// repeatRunLength flags digit sequences like 27.7555555.
	repeatRunLength = 5
)

// trivialSequences are digit runs nobody's GPS emits but spoofing tools do.
var trivialSequences = []string{
	"111111",
	"123456",
	"654321",
	"000000",
	"999999",
}

// Check inspects a single coordinate pair and returns a location_spoofing
// signal when the encoding itself is implausible, or nil when the point
// passes every heuristic.
func Check(p models.GeoPoint) *models.FraudSignal {
	if p.Latitude == 0 && p.Longitude == 0 {
		return signal("coordinates are exactly (0, 0), the null island point", p)
	}

	for _, coord := range []struct {
		name  string
		value float64
	}{
		{"latitude", p.Latitude},
		{"longitude", p.Longitude},
	} {
		text := strconv.FormatFloat(coord.value, 'f', -1, 64)

		if digits := fractionDigits(text); digits > maxFractionDigits {
			return signal(fmt.Sprintf("%s carries %d fractional digits, beyond realistic GPS precision", coord.name, digits), p)
		}
		if run := longestDigitRun(text); run >= repeatRunLength {
			return signal(fmt.Sprintf("%s contains %d identical consecutive digits", coord.name, run), p)
		}
		if seq := matchTrivialSequence(text); seq != "" {
			return signal(fmt.Sprintf("%s contains the trivial digit sequence %q", coord.name, seq), p)
		}
	}

	return nil
}

func signal(reason string, p models.GeoPoint) *models.FraudSignal {
	return &models.FraudSignal{
		Kind:     models.SignalLocationSpoofing,
		Severity: models.SeverityHigh,
		Reason:   reason,
		Evidence: map[string]interface{}{
			"latitude":  p.Latitude,
			"longitude": p.Longitude,
		},
		DetectedAt: time.Now().UTC(),
	}
}

func fractionDigits(text string) int {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return len(text) - i - 1
	}
	return 0
}

// longestDigitRun returns the length of the longest run of one repeated
// digit across the full decimal representation, ignoring the sign and
// decimal point.
func longestDigitRun(text string) int {
	longest, run := 0, 0
	var prev byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < '0' || c > '9' {
			continue
		}
		if c == prev {
			run++
		} else {
			run = 1
			prev = c
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func matchTrivialSequence(text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	for _, seq := range trivialSequences {
		if strings.Contains(digits, seq) {
			return seq
		}
	}
	return ""
}

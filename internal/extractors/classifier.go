package extractors

import "github.com/miradorstack/mirador-uptime/internal/models"

// IsBadResponse reports whether a probe counts as a failure. A probe without round-trip data
// and without a failure flag is treated as bad; an RTT equal to the threshold is still good.
func IsBadResponse(probe models.ProbeResult, latencyThresholdMs float64) bool {
	if probe.Failed || probe.ErrorKind != models.ErrorKindNone {
		return true
	}
	if probe.RoundTripTimeMs == nil {
		return true
	}
	return *probe.RoundTripTimeMs > latencyThresholdMs
}

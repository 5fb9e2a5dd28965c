package tcp

import "time"

// RTTEstimator is a side-channel RTT observer (RFC 6298 smoothed-RTT).
// It never influences Sender's retransmission decisions, which always
// follow the flat double-on-timeout rule in Sender.Tick; it only gives
// operators a real RTT signal for the debug/status endpoint.
type RTTEstimator struct {
	srtt       time.Duration
	rttVar     time.Duration
	hasInitial bool
}

// Sample feeds a single round-trip measurement (the time between sending a
// non-retransmitted segment and the ack that first covers it).
func (r *RTTEstimator) Sample(rtt time.Duration) {
	if !r.hasInitial {
		r.srtt = rtt
		r.rttVar = rtt / 2
		r.hasInitial = true
		return
	}
	delta := r.srtt - rtt
	if delta < 0 {
		delta = -delta
	}
	r.rttVar = (3*r.rttVar + delta) / 4
	r.srtt = (7*r.srtt + rtt) / 8
}

// SmoothedRTT returns the current smoothed RTT estimate, or zero if no
// sample has been taken yet.
func (r *RTTEstimator) SmoothedRTT() time.Duration {
	return r.srtt
}

// HasSample reports whether at least one RTT sample has been taken.
func (r *RTTEstimator) HasSample() bool {
	return r.hasInitial
}

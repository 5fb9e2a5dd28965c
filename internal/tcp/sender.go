package tcp

import (
	"time"

	"github.com/tinyrange/minnow/internal/stream"
	"github.com/tinyrange/minnow/internal/tcpseq"
)

// outstandingSeg pairs a sent segment with the bookkeeping needed to feed
// RTTEstimator: when it was sent (on the tick-driven virtual clock) and
// whether it has already been retransmitted (retransmitted segments are
// never used as RTT samples, per Karn's algorithm).
type outstandingSeg struct {
	msg           SenderMessage
	sentAtMillis  uint64
	retransmitted bool
}

// Transmit is the capability a Sender uses to hand a segment off to
// whatever carries it onward (a NetworkInterface, a test harness, ...).
// Modelled as a plain function value: no heap-allocated closure machinery
// is required beyond what a Go func value already is.
type Transmit func(SenderMessage)

// outstandingLimit caps how many unacknowledged segments Sender retains
// for retransmission bookkeeping; in practice the window size bounds this
// far below any reasonable cap, but a limit keeps a misbehaving peer from
// growing the queue unboundedly.
const outstandingLimit = 1 << 20

// Sender fills segments from an outbound ByteStream and manages the
// retransmission timer, outstanding window, and SYN/FIN lifecycle.
type Sender struct {
	input *stream.ByteStream
	isn   tcpseq.Wrap32

	absSeq uint64 // A: next absolute sequence number to emit

	initialRTO uint64
	currentRTO uint64

	outstanding     uint64 // O: sum of sequence_length over the outstanding list
	outstandingSegs []outstandingSeg
	consecutiveRetx uint64
	peerWindow      uint16 // W_peer, raw (may be 0)

	timerRunning         bool
	timerRemainingMillis int64

	sentSYN    bool
	sentFIN    bool
	prevAckAbs uint64

	clockMillis uint64
	rtt         RTTEstimator
}

// RTT returns the sender's observability-only RTT estimator (see rtt.go).
// It never affects retransmission decisions.
func (tx *Sender) RTT() *RTTEstimator {
	return &tx.rtt
}

// NewSender constructs a Sender reading from input, using isn as the
// initial sequence number and initialRTOMillis as the starting
// retransmission timeout.
func NewSender(input *stream.ByteStream, isn tcpseq.Wrap32, initialRTOMillis uint64) *Sender {
	return &Sender{
		input:      input,
		isn:        isn,
		initialRTO: initialRTOMillis,
		currentRTO: initialRTOMillis,
		peerWindow: 1,
	}
}

// Input returns the outbound ByteStream the sender drains.
func (tx *Sender) Input() *stream.ByteStream {
	return tx.input
}

// SequenceNumbersInFlight returns the sum of sequence_length over every
// currently-outstanding (unacknowledged) segment.
func (tx *Sender) SequenceNumbersInFlight() uint64 {
	return tx.outstanding
}

// ConsecutiveRetransmissions returns the number of back-to-back timeouts
// since the last fresh ack.
func (tx *Sender) ConsecutiveRetransmissions() uint64 {
	return tx.consecutiveRetx
}

// effectiveWindow returns max(peerWindow, 1): the "1" rule preserves
// zero-window-probe behavior.
func (tx *Sender) effectiveWindow() uint64 {
	if tx.peerWindow == 0 {
		return 1
	}
	return uint64(tx.peerWindow)
}

// Push emits segments from the outbound stream while the outstanding count
// is below the effective window, handling the SYN and FIN lifecycle.
func (tx *Sender) Push(transmit Transmit) {
	for tx.outstanding < tx.effectiveWindow() {
		var msg SenderMessage

		if !tx.sentSYN {
			msg.SYN = true
			tx.sentSYN = true
		}
		msg.Seqno = tcpseq.Wrap(tx.absSeq, tx.isn)

		window := tx.effectiveWindow()
		remaining := window - tx.outstanding
		if msg.SYN && remaining > 0 {
			remaining--
		}
		payloadLen := MaxPayloadSize
		if uint64(payloadLen) > remaining {
			payloadLen = int(remaining)
		}
		buffered := tx.input.BytesBuffered()
		if payloadLen > buffered {
			payloadLen = buffered
		}
		if payloadLen > 0 {
			msg.Payload = append([]byte(nil), tx.input.Peek()[:payloadLen]...)
			tx.input.Pop(payloadLen)
		}

		if tx.input.IsFinished() && !tx.sentFIN && tx.outstanding+msg.SequenceLength() < window {
			msg.FIN = true
			tx.sentFIN = true
		}

		if msg.SequenceLength() == 0 {
			break
		}

		tx.absSeq += msg.SequenceLength()
		tx.outstanding += msg.SequenceLength()

		if !tx.timerRunning {
			tx.startTimer(tx.currentRTO)
		}

		msg.RST = tx.input.HasError()

		transmit(msg)

		if len(tx.outstandingSegs) < outstandingLimit {
			tx.outstandingSegs = append(tx.outstandingSegs, outstandingSeg{msg: msg, sentAtMillis: tx.clockMillis})
		}
	}
}

// Receive processes feedback from the peer receiver: window size, RST, and
// any new acknowledgement.
func (tx *Sender) Receive(rcv ReceiverMessage) {
	tx.peerWindow = rcv.WindowSize

	if rcv.RST {
		tx.input.SetError()
	}

	if !rcv.HasAckno {
		return
	}

	abs := rcv.Ackno.Unwrap(tx.isn, tx.absSeq)
	if abs <= tx.prevAckAbs || abs > tx.absSeq {
		return // stale or impossible ack: ignored, does not reset RTO/timer
	}
	tx.prevAckAbs = abs

	for len(tx.outstandingSegs) > 0 {
		head := tx.outstandingSegs[0]
		headAbs := head.msg.Seqno.Unwrap(tx.isn, tx.absSeq)
		if headAbs+head.msg.SequenceLength() > abs {
			break
		}
		if !head.retransmitted {
			tx.rtt.Sample(time.Duration(tx.clockMillis-head.sentAtMillis) * time.Millisecond)
		}
		tx.outstanding -= head.msg.SequenceLength()
		tx.outstandingSegs = tx.outstandingSegs[1:]
	}

	tx.currentRTO = tx.initialRTO
	tx.stopTimer()
	if len(tx.outstandingSegs) > 0 {
		tx.startTimer(tx.currentRTO)
	}
	tx.consecutiveRetx = 0
}

// Tick advances the retransmission timer by ms milliseconds, retransmitting
// and backing off when it expires.
func (tx *Sender) Tick(ms uint64, transmit Transmit) {
	tx.clockMillis += ms

	if !tx.timerRunning {
		return
	}

	tx.timerRemainingMillis -= int64(ms)
	if tx.timerRemainingMillis > 0 {
		return
	}

	if len(tx.outstandingSegs) > 0 {
		transmit(tx.outstandingSegs[0].msg)
		tx.outstandingSegs[0].retransmitted = true
	}

	if tx.peerWindow > 0 {
		tx.consecutiveRetx++
		tx.currentRTO *= 2
	}
	tx.startTimer(tx.currentRTO)
}

// MakeEmptyMessage returns a zero-length message carrying only the current
// sequence number and RST reflecting the stream's error state: used for
// keepalives or bare acks that don't need a full Push.
func (tx *Sender) MakeEmptyMessage() SenderMessage {
	return SenderMessage{
		Seqno: tcpseq.Wrap(tx.absSeq, tx.isn),
		RST:   tx.input.HasError(),
	}
}

func (tx *Sender) startTimer(rto uint64) {
	tx.timerRunning = true
	tx.timerRemainingMillis = int64(rto)
}

func (tx *Sender) stopTimer() {
	tx.timerRunning = false
	tx.timerRemainingMillis = 0
}

// Package tcp implements the reliable in-order delivery engine: a sender
// that fills segments from an outbound byte stream and manages
// retransmission/flow control, and a receiver that feeds a Reassembler and
// reports ack/window state back to the peer.
package tcp

import "github.com/tinyrange/minnow/internal/tcpseq"

// MaxPayloadSize bounds the payload length of a single outbound segment:
// the commonly used default of 1452 bytes, which keeps a segment plus its
// 20-byte IPv4 and 20-byte TCP headers within a 1500-byte Ethernet MTU.
const MaxPayloadSize = 1452

// SenderMessage is a single outbound TCP segment, as produced by Sender and
// consumed by whatever transmits it (NetworkInterface, a test harness,
// etc.).
type SenderMessage struct {
	Seqno   tcpseq.Wrap32
	SYN     bool
	Payload []byte
	FIN     bool
	RST     bool
}

// SequenceLength returns 1 (SYN) + len(Payload) + 1 (FIN).
func (m SenderMessage) SequenceLength() uint64 {
	var n uint64
	if m.SYN {
		n++
	}
	n += uint64(len(m.Payload))
	if m.FIN {
		n++
	}
	return n
}

// ReceiverMessage is the ack/window feedback a receiver reports to its peer
// sender.
type ReceiverMessage struct {
	Ackno      tcpseq.Wrap32
	HasAckno   bool
	WindowSize uint16
	RST        bool
}

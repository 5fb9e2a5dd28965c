package tcp

import (
	"math"

	"github.com/tinyrange/minnow/internal/reassembly"
	"github.com/tinyrange/minnow/internal/stream"
	"github.com/tinyrange/minnow/internal/tcpseq"
)

// Receiver consumes segments from a peer Sender, feeds them to a
// Reassembler, and reports ack/window state via Send.
type Receiver struct {
	reassembler *reassembly.Reassembler

	zeroPoint   tcpseq.Wrap32
	receivedSYN bool
}

// NewReceiver constructs a Receiver writing reassembled bytes into output.
func NewReceiver(output *stream.ByteStream) *Receiver {
	return &Receiver{reassembler: reassembly.New(output)}
}

// Output returns the stream the receiver writes reassembled bytes into.
func (rx *Receiver) Output() *stream.ByteStream {
	return rx.reassembler.Output()
}

// Receive processes one inbound segment from the peer sender.
func (rx *Receiver) Receive(msg SenderMessage) {
	seqno := msg.Seqno
	if msg.SYN && !rx.receivedSYN {
		rx.zeroPoint = msg.Seqno
		seqno = tcpseq.Wrap(1, seqno) // advance past the implicit SYN byte
		rx.receivedSYN = true
	}

	if msg.RST {
		rx.reassembler.Output().SetError()
	}

	if !rx.receivedSYN {
		return
	}

	checkpoint := rx.Output().BytesPushed()
	absSeqno := seqno.Unwrap(rx.zeroPoint, checkpoint)
	if seqno.Equal(rx.zeroPoint) || absSeqno == 0 {
		// Unwrapped seqno refers to the SYN itself, not a payload byte.
		return
	}
	firstIndex := absSeqno - 1

	rx.reassembler.Insert(firstIndex, msg.Payload, msg.FIN)
}

// Send returns the current ack/window feedback for the peer sender.
func (rx *Receiver) Send() ReceiverMessage {
	out := rx.Output()
	msg := ReceiverMessage{RST: out.HasError()}

	if !rx.receivedSYN {
		return msg
	}

	absAck := out.BytesPushed() + 1
	if out.IsClosed() {
		absAck++
	}
	msg.Ackno = tcpseq.Wrap(absAck, rx.zeroPoint)
	msg.HasAckno = true

	window := out.AvailableCapacity()
	if window > math.MaxUint16 {
		window = math.MaxUint16
	}
	msg.WindowSize = uint16(window)

	return msg
}

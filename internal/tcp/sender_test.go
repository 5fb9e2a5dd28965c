package tcp

import (
	"testing"

	"github.com/tinyrange/minnow/internal/stream"
	"github.com/tinyrange/minnow/internal/tcpseq"
)

func TestSenderSYNDataFINAck(t *testing.T) {
	in := stream.New(100)
	tx := NewSender(in, tcpseq.Wrap32FromRaw(0), 1000)

	var sent []SenderMessage
	transmit := func(m SenderMessage) { sent = append(sent, m) }

	tx.Push(transmit) // nothing buffered yet: should emit bare SYN
	if len(sent) != 1 || !sent[0].SYN || sent[0].FIN || len(sent[0].Payload) != 0 {
		t.Fatalf("expected lone SYN, got %+v", sent)
	}

	// Peer acks the SYN with a window of 4.
	tx.Receive(ReceiverMessage{Ackno: tcpseq.Wrap(1, tcpseq.Wrap32FromRaw(0)), HasAckno: true, WindowSize: 4})
	if tx.SequenceNumbersInFlight() != 0 {
		t.Fatalf("outstanding after SYN ack = %d, want 0", tx.SequenceNumbersInFlight())
	}

	sent = nil
	in.Push([]byte("abcd"))
	tx.Push(transmit)
	if len(sent) != 1 || sent[0].FIN || string(sent[0].Payload) != "abcd" {
		t.Fatalf("expected one data segment 'abcd', got %+v", sent)
	}

	// Peer acks the "abcd" segment, freeing window for the FIN.
	tx.Receive(ReceiverMessage{Ackno: tcpseq.Wrap(5, tcpseq.Wrap32FromRaw(0)), HasAckno: true, WindowSize: 4})

	sent = nil
	in.Close()
	tx.Push(transmit)
	if len(sent) != 1 || !sent[0].FIN {
		t.Fatalf("expected FIN segment, got %+v", sent)
	}

	// Ack through the FIN.
	finalAckAbs := uint64(1 + 4 + 1)
	tx.Receive(ReceiverMessage{Ackno: tcpseq.Wrap(finalAckAbs, tcpseq.Wrap32FromRaw(0)), HasAckno: true, WindowSize: 4})

	if tx.SequenceNumbersInFlight() != 0 {
		t.Fatalf("outstanding after final ack = %d, want 0", tx.SequenceNumbersInFlight())
	}
	if tx.ConsecutiveRetransmissions() != 0 {
		t.Fatalf("consecutive retx = %d, want 0", tx.ConsecutiveRetransmissions())
	}
	if tx.timerRunning {
		t.Fatalf("timer still running with nothing outstanding")
	}
}

func TestSenderExponentialBackoff(t *testing.T) {
	in := stream.New(100)
	tx := NewSender(in, tcpseq.Wrap32FromRaw(0), 1000)

	var retx []SenderMessage
	tx.Push(func(m SenderMessage) {}) // SYN sent, timer started at 1000ms

	tx.Tick(999, func(m SenderMessage) { retx = append(retx, m) })
	if len(retx) != 0 {
		t.Fatalf("retransmitted before RTO elapsed")
	}
	tx.Tick(1, func(m SenderMessage) { retx = append(retx, m) })
	if len(retx) != 1 {
		t.Fatalf("expected retransmit at RTO, got %d", len(retx))
	}
	if tx.currentRTO != 2000 {
		t.Fatalf("RTO after first timeout = %d, want 2000", tx.currentRTO)
	}

	tx.Tick(2000, func(m SenderMessage) { retx = append(retx, m) })
	if len(retx) != 2 {
		t.Fatalf("expected second retransmit, got %d", len(retx))
	}
	if tx.currentRTO != 4000 {
		t.Fatalf("RTO after second timeout = %d, want 4000", tx.currentRTO)
	}
}

func TestSenderZeroWindowNoBackoff(t *testing.T) {
	in := stream.New(100)
	tx := NewSender(in, tcpseq.Wrap32FromRaw(0), 1000)
	tx.Push(func(m SenderMessage) {})
	tx.Receive(ReceiverMessage{WindowSize: 0}) // zero window, no ackno

	retxCount := 0
	tx.Tick(1000, func(m SenderMessage) { retxCount++ })
	if retxCount != 1 {
		t.Fatalf("expected one retransmit probe, got %d", retxCount)
	}
	if tx.currentRTO != 1000 {
		t.Fatalf("RTO should not double on zero window, got %d", tx.currentRTO)
	}
	if tx.ConsecutiveRetransmissions() != 0 {
		t.Fatalf("consecutive retx should not increment on zero window, got %d", tx.ConsecutiveRetransmissions())
	}
}

func TestSenderStaleAndImpossibleAcksIgnored(t *testing.T) {
	in := stream.New(100)
	tx := NewSender(in, tcpseq.Wrap32FromRaw(0), 1000)
	tx.Push(func(m SenderMessage) {})

	tx.Receive(ReceiverMessage{Ackno: tcpseq.Wrap(1, tcpseq.Wrap32FromRaw(0)), HasAckno: true, WindowSize: 4})
	if tx.SequenceNumbersInFlight() != 0 {
		t.Fatalf("first ack should clear SYN")
	}

	// Stale ack: no effect, must not panic on re-ack of already-cleared data.
	tx.Receive(ReceiverMessage{Ackno: tcpseq.Wrap(1, tcpseq.Wrap32FromRaw(0)), HasAckno: true, WindowSize: 4})

	// Impossible ack beyond anything sent.
	tx.Receive(ReceiverMessage{Ackno: tcpseq.Wrap(1000, tcpseq.Wrap32FromRaw(0)), HasAckno: true, WindowSize: 4})
	if tx.prevAckAbs != 1 {
		t.Fatalf("impossible ack should be ignored, prevAckAbs = %d, want 1", tx.prevAckAbs)
	}
}

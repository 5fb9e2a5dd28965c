package router

import (
	"testing"
	"time"

	"github.com/tinyrange/minnow/internal/netif"
	"github.com/tinyrange/minnow/internal/stream"
	"github.com/tinyrange/minnow/internal/tcp"
	"github.com/tinyrange/minnow/internal/tcpseq"
)

type capturedSink struct {
	frames [][]byte
}

func (s *capturedSink) Send(frame []byte) error {
	s.frames = append(s.frames, append([]byte(nil), frame...))
	return nil
}

func mustAddr(a, b, c, d byte) netif.IPv4Addr {
	return netif.IPv4AddrFromBytes([4]byte{a, b, c, d})
}

func newTestInterface(eth byte) (*netif.NetworkInterface, *capturedSink) {
	sink := &capturedSink{}
	addr := netif.EthernetAddr{0, 0, 0, 0, 0, eth}
	nic := netif.New(nil, addr, mustAddr(10, 0, 0, byte(eth)), sink)
	return nic, sink
}

func TestLongestPrefixMatch(t *testing.T) {
	r := New(nil)
	nic0, sink0 := newTestInterface(1)
	nic1, sink1 := newTestInterface(2)
	nic2, sink2 := newTestInterface(3)
	idx0 := r.AddInterface(nic0)
	idx1 := r.AddInterface(nic1)
	idx2 := r.AddInterface(nic2)

	r.AddRoute(mustAddr(10, 0, 0, 0), 8, netif.IPv4Addr(0), false, idx0)
	r.AddRoute(mustAddr(10, 0, 0, 0), 16, netif.IPv4Addr(0), false, idx1)
	r.AddRoute(mustAddr(0, 0, 0, 0), 0, netif.IPv4Addr(0), false, idx2)

	// Pre-seed ARP so each SendDatagram transmits immediately instead of
	// queuing behind an ARP request.
	learn := func(nic *netif.NetworkInterface, ip netif.IPv4Addr) {
		nic.RecvFrame((netif.EthernetFrame{
			Dst:  nic.EthernetAddr(),
			Src:  netif.EthernetAddr{9, 9, 9, 9, 9, 9},
			Type: netif.EtherTypeARP,
			Payload: netif.ARPMessage{
				Opcode:    netif.ARPOpReply,
				SenderEth: netif.EthernetAddr{9, 9, 9, 9, 9, 9},
				SenderIP:  ip,
				TargetEth: nic.EthernetAddr(),
				TargetIP:  nic.IPv4Addr(),
			}.Serialize(),
		}).Serialize())
	}
	learn(nic0, mustAddr(10, 1, 5, 5))
	learn(nic1, mustAddr(10, 0, 0, 7))
	learn(nic2, mustAddr(192, 168, 1, 1))

	send := func(nic *netif.NetworkInterface, dst netif.IPv4Addr) {
		frame := (netif.EthernetFrame{
			Dst:  nic.EthernetAddr(),
			Src:  netif.EthernetAddr{9, 9, 9, 9, 9, 9},
			Type: netif.EtherTypeIPv4,
			Payload: netif.IPv4Datagram{
				TTL: 64, Protocol: 6,
				Src: mustAddr(1, 1, 1, 1), Dst: dst,
			}.Serialize(),
		}).Serialize()
		nic.RecvFrame(frame)
	}
	send(nic0, mustAddr(10, 1, 5, 5))
	send(nic0, mustAddr(10, 0, 0, 7))
	send(nic0, mustAddr(192, 168, 1, 1))

	r.Route()

	if len(sink0.frames) != 1 {
		t.Fatalf("iface0 sent %d frames, want 1", len(sink0.frames))
	}
	if len(sink1.frames) != 1 {
		t.Fatalf("iface1 sent %d frames, want 1", len(sink1.frames))
	}
	if len(sink2.frames) != 1 {
		t.Fatalf("iface2 sent %d frames, want 1", len(sink2.frames))
	}
}

func TestTTLExpiredDropped(t *testing.T) {
	r := New(nil)
	nic0, sink0 := newTestInterface(1)
	idx0 := r.AddInterface(nic0)
	r.AddRoute(mustAddr(0, 0, 0, 0), 0, netif.IPv4Addr(0), false, idx0)

	frame := (netif.EthernetFrame{
		Dst:  nic0.EthernetAddr(),
		Src:  netif.EthernetAddr{9, 9, 9, 9, 9, 9},
		Type: netif.EtherTypeIPv4,
		Payload: netif.IPv4Datagram{
			TTL: 1, Protocol: 6,
			Src: mustAddr(1, 1, 1, 1), Dst: mustAddr(8, 8, 8, 8),
		}.Serialize(),
	}).Serialize()
	nic0.RecvFrame(frame)

	r.Route()
	if len(sink0.frames) != 0 {
		t.Fatalf("expected ttl-expired datagram to be dropped, got %d frames", len(sink0.frames))
	}
}

func TestDebugStatusReportsARPCacheAndSenderRTT(t *testing.T) {
	r := New(nil)
	nic0, _ := newTestInterface(1)
	r.AddInterface(nic0)

	peer := netif.EthernetAddr{9, 9, 9, 9, 9, 9}
	peerIP := mustAddr(10, 0, 0, 9)
	nic0.RecvFrame((netif.EthernetFrame{
		Dst:  nic0.EthernetAddr(),
		Src:  peer,
		Type: netif.EtherTypeARP,
		Payload: netif.ARPMessage{
			Opcode: netif.ARPOpReply, SenderEth: peer, SenderIP: peerIP,
			TargetEth: nic0.EthernetAddr(), TargetIP: nic0.IPv4Addr(),
		}.Serialize(),
	}).Serialize())

	tx := tcp.NewSender(stream.New(4096), tcpseq.Wrap32FromRaw(0), 1000)
	r.RegisterSender(tx)
	tx.RTT().Sample(42 * time.Millisecond)

	status := r.collectDebugStatus()
	if len(status.Interfaces) != 1 || len(status.Interfaces[0].ARPCache) != 1 {
		t.Fatalf("expected one interface with one cached ARP entry, got %+v", status.Interfaces)
	}
	if status.Interfaces[0].ARPCache[0].IP != peerIP.String() {
		t.Fatalf("arp cache entry ip = %s, want %s", status.Interfaces[0].ARPCache[0].IP, peerIP)
	}
	if len(status.Senders) != 1 || !status.Senders[0].HasSample {
		t.Fatalf("expected one registered sender with a sample, got %+v", status.Senders)
	}
}

func TestNoMatchingRouteDropped(t *testing.T) {
	r := New(nil)
	nic0, sink0 := newTestInterface(1)
	idx0 := r.AddInterface(nic0)
	r.AddRoute(mustAddr(10, 0, 0, 0), 8, netif.IPv4Addr(0), false, idx0)

	frame := (netif.EthernetFrame{
		Dst:  nic0.EthernetAddr(),
		Src:  netif.EthernetAddr{9, 9, 9, 9, 9, 9},
		Type: netif.EtherTypeIPv4,
		Payload: netif.IPv4Datagram{
			TTL: 64, Protocol: 6,
			Src: mustAddr(1, 1, 1, 1), Dst: mustAddr(8, 8, 8, 8),
		}.Serialize(),
	}).Serialize()
	nic0.RecvFrame(frame)

	r.Route()
	if len(sink0.frames) != 0 {
		t.Fatalf("expected unmatched datagram to be dropped, got %d frames", len(sink0.frames))
	}
}

// Package netif implements IPv4-over-Ethernet network interfaces: ARP
// request/reply, an aged ARP cache, and a pending-datagram queue for
// addresses still being resolved.
package netif

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tinyrange/minnow/internal/pcap"
)

// ARPEntryTTLMillis is how long a learned ARP mapping stays valid.
const ARPEntryTTLMillis = 30_000

// ARPRequestCooldownMillis bounds how often an unanswered ARP request for
// the same IP may be re-broadcast.
const ARPRequestCooldownMillis = 5_000

// OutputPort is the sink a NetworkInterface transmits serialized Ethernet
// frames to. There is no delivery confirmation; an error returned by Send is
// passed back by SendDatagram and RecvFrame (for queued datagrams flushed
// after ARP resolution it is only logged).
type OutputPort interface {
	Send(frame []byte) error
}

type arpCacheEntry struct {
	eth   EthernetAddr
	ageMs uint64
}

// NetworkInterface provides IPv4-over-Ethernet encapsulation with ARP
// resolution for one local (Ethernet, IPv4) address pair.
type NetworkInterface struct {
	log *slog.Logger

	ethAddr EthernetAddr
	ipAddr  IPv4Addr
	output  OutputPort

	inbound []IPv4Datagram

	cache      map[IPv4Addr]arpCacheEntry
	pending    map[IPv4Addr][]IPv4Datagram
	requestAge map[IPv4Addr]uint64

	arpEntryTTLMs        uint64
	arpRequestCooldownMs uint64

	capture *pcap.Writer
}

// New constructs a NetworkInterface bound to the given local addresses and
// output sink.
func New(log *slog.Logger, ethAddr EthernetAddr, ipAddr IPv4Addr, output OutputPort) *NetworkInterface {
	if output == nil {
		panic("netif: output port must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &NetworkInterface{
		log:                  log,
		ethAddr:              ethAddr,
		ipAddr:               ipAddr,
		output:               output,
		cache:                make(map[IPv4Addr]arpCacheEntry),
		pending:              make(map[IPv4Addr][]IPv4Datagram),
		requestAge:           make(map[IPv4Addr]uint64),
		arpEntryTTLMs:        ARPEntryTTLMillis,
		arpRequestCooldownMs: ARPRequestCooldownMillis,
	}
}

// Configure overrides the ARP entry TTL and request cooldown (both in
// milliseconds) for this interface; call before the first Tick if the
// defaults aren't wanted.
func (nic *NetworkInterface) Configure(arpEntryTTLMs, arpRequestCooldownMs uint64) {
	nic.arpEntryTTLMs = arpEntryTTLMs
	nic.arpRequestCooldownMs = arpRequestCooldownMs
}

// AttachCapture enables mirroring every transmitted and received Ethernet
// frame to w (see internal/pcap).
func (nic *NetworkInterface) AttachCapture(w *pcap.Writer) {
	nic.capture = w
}

// EthernetAddr returns the interface's local MAC address.
func (nic *NetworkInterface) EthernetAddr() EthernetAddr { return nic.ethAddr }

// IPv4Addr returns the interface's local IPv4 address.
func (nic *NetworkInterface) IPv4Addr() IPv4Addr { return nic.ipAddr }

// ARPCacheEntry is a snapshot of one learned IP-to-Ethernet mapping.
type ARPCacheEntry struct {
	IP        IPv4Addr
	Eth       EthernetAddr
	AgeMillis uint64
}

// ARPCache returns a snapshot of the current ARP cache, sorted by IP for
// deterministic output (callers such as the debug/status endpoint need a
// stable ordering across calls).
func (nic *NetworkInterface) ARPCache() []ARPCacheEntry {
	entries := make([]ARPCacheEntry, 0, len(nic.cache))
	for ip, e := range nic.cache {
		entries = append(entries, ARPCacheEntry{IP: ip, Eth: e.eth, AgeMillis: e.ageMs})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].IP < entries[j].IP })
	return entries
}

// SendDatagram transmits dgram to nextHop, resolving its Ethernet address
// via the ARP cache first if necessary. If the mapping is unknown, dgram is
// queued and an ARP request is (re-)broadcast, subject to the cooldown.
func (nic *NetworkInterface) SendDatagram(dgram IPv4Datagram, nextHop IPv4Addr) error {
	if entry, ok := nic.cache[nextHop]; ok {
		return nic.transmitIPv4(entry.eth, dgram)
	}

	nic.pending[nextHop] = append(nic.pending[nextHop], dgram)

	age, haveRequested := nic.requestAge[nextHop]
	if !haveRequested || age >= nic.arpRequestCooldownMs {
		if err := nic.broadcastARPRequest(nextHop); err != nil {
			return err
		}
		nic.requestAge[nextHop] = 0
	}
	return nil
}

func (nic *NetworkInterface) transmitIPv4(dst EthernetAddr, dgram IPv4Datagram) error {
	frame := EthernetFrame{Dst: dst, Src: nic.ethAddr, Type: EtherTypeIPv4, Payload: dgram.Serialize()}
	return nic.sendFrame(frame)
}

func (nic *NetworkInterface) broadcastARPRequest(target IPv4Addr) error {
	arp := ARPMessage{
		Opcode:    ARPOpRequest,
		SenderEth: nic.ethAddr,
		SenderIP:  nic.ipAddr,
		TargetIP:  target,
	}
	frame := EthernetFrame{Dst: Broadcast, Src: nic.ethAddr, Type: EtherTypeARP, Payload: arp.Serialize()}
	return nic.sendFrame(frame)
}

func (nic *NetworkInterface) sendFrame(frame EthernetFrame) error {
	raw := frame.Serialize()
	if nic.capture != nil {
		if err := nic.capture.WriteFrame(raw); err != nil {
			nic.log.Warn("netif: pcap write failed", "err", err)
		}
	}
	return nic.output.Send(raw)
}

// RecvFrame processes an inbound raw Ethernet frame: ARP is resolved and
// replied to inline; IPv4 datagrams are parsed and queued in the inbound
// datagram queue for a Router or local transport to drain via Inbound().
// Malformed or misaddressed frames are silently dropped.
func (nic *NetworkInterface) RecvFrame(raw []byte) error {
	if nic.capture != nil {
		if err := nic.capture.WriteFrame(raw); err != nil {
			nic.log.Warn("netif: pcap write failed", "err", err)
		}
	}

	frame, err := ParseEthernetFrame(raw)
	if err != nil {
		nic.log.Debug("netif: drop malformed frame", "err", err)
		return nil
	}
	if !frame.Dst.IsBroadcast() && frame.Dst != nic.ethAddr {
		return nil
	}

	switch frame.Type {
	case EtherTypeIPv4:
		dgram, err := ParseIPv4Datagram(frame.Payload)
		if err != nil {
			nic.log.Debug("netif: drop malformed ipv4 datagram", "err", err)
			return nil
		}
		nic.inbound = append(nic.inbound, dgram)
		return nil
	case EtherTypeARP:
		return nic.handleARP(frame.Payload)
	default:
		return nil
	}
}

func (nic *NetworkInterface) handleARP(payload []byte) error {
	msg, err := ParseARPMessage(payload)
	if err != nil {
		nic.log.Debug("netif: drop malformed arp message", "err", err)
		return nil
	}
	if msg.TargetIP != nic.ipAddr {
		return nil
	}

	nic.learn(msg.SenderIP, msg.SenderEth)
	nic.drainPending(msg.SenderIP)

	if msg.Opcode == ARPOpRequest {
		reply := ARPMessage{
			Opcode:    ARPOpReply,
			SenderEth: nic.ethAddr,
			SenderIP:  nic.ipAddr,
			TargetEth: msg.SenderEth,
			TargetIP:  msg.SenderIP,
		}
		frame := EthernetFrame{Dst: msg.SenderEth, Src: nic.ethAddr, Type: EtherTypeARP, Payload: reply.Serialize()}
		return nic.sendFrame(frame)
	}
	return nil
}

// learn records or refreshes a mapping learned from any well-formed ARP
// message addressed to this interface (request or reply alike). This
// covers gratuitous-ARP-style learning for free.
func (nic *NetworkInterface) learn(ip IPv4Addr, eth EthernetAddr) {
	nic.cache[ip] = arpCacheEntry{eth: eth, ageMs: 0}
	delete(nic.requestAge, ip)
}

func (nic *NetworkInterface) drainPending(ip IPv4Addr) {
	queued := nic.pending[ip]
	if len(queued) == 0 {
		return
	}
	delete(nic.pending, ip)
	for _, dgram := range queued {
		if err := nic.SendDatagram(dgram, ip); err != nil {
			nic.log.Warn("netif: send queued datagram failed", "ip", ip.String(), "err", err)
		}
	}
}

// Inbound drains and returns every IPv4 datagram received since the last
// call.
func (nic *NetworkInterface) Inbound() []IPv4Datagram {
	if len(nic.inbound) == 0 {
		return nil
	}
	d := nic.inbound
	nic.inbound = nil
	return d
}

// Tick ages ARP cache entries and outstanding-request cooldowns by ms
// milliseconds, evicting any entry whose age reaches the entry TTL or the
// request cooldown respectively.
func (nic *NetworkInterface) Tick(ms uint64) {
	for ip, entry := range nic.cache {
		entry.ageMs += ms
		if entry.ageMs >= nic.arpEntryTTLMs {
			delete(nic.cache, ip)
			continue
		}
		nic.cache[ip] = entry
	}
	for ip, age := range nic.requestAge {
		age += ms
		if age >= nic.arpRequestCooldownMs {
			delete(nic.requestAge, ip)
			continue
		}
		nic.requestAge[ip] = age
	}
}

// ErrNoResolution is returned by callers that want to synchronously fail
// when a static lookup (as opposed to SendDatagram's queue-and-ARP path) is
// required; the core protocol never needs it but a caller wiring a simple
// CLI demo might.
var ErrNoResolution = errors.New("netif: no ARP resolution for address")

// Resolve returns the cached Ethernet address for ip, if any.
func (nic *NetworkInterface) Resolve(ip IPv4Addr) (EthernetAddr, error) {
	entry, ok := nic.cache[ip]
	if !ok {
		return EthernetAddr{}, fmt.Errorf("%w: %s", ErrNoResolution, ip)
	}
	return entry.eth, nil
}

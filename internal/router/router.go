// Package router implements longest-prefix-match IPv4 forwarding across a
// set of network interfaces.
package router

import (
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/tinyrange/minnow/internal/netif"
	"github.com/tinyrange/minnow/internal/tcp"
)

// route is one installed forwarding entry.
type route struct {
	prefix       netif.IPv4Addr
	prefixLength uint8
	nextHop      netif.IPv4Addr
	hasNextHop   bool
	interfaceIdx int
}

// Router owns a set of interfaces and forwards datagrams among them by
// longest-prefix match.
type Router struct {
	log        *slog.Logger
	interfaces []*netif.NetworkInterface
	routes     []route
	senders    []*tcp.Sender

	debugMu       sync.Mutex
	debugSrv      *http.Server
	debugListener net.Listener
	debugAddr     string
	debugWG       sync.WaitGroup
}

// New constructs an empty Router.
func New(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log}
}

// AddInterface registers nic with the router and returns its stable index,
// the handle used by AddRoute and by callers that need to address a
// specific interface without holding their own reference to it.
func (r *Router) AddInterface(nic *netif.NetworkInterface) int {
	r.interfaces = append(r.interfaces, nic)
	return len(r.interfaces) - 1
}

// Interface dereferences a stable interface index.
func (r *Router) Interface(idx int) *netif.NetworkInterface {
	return r.interfaces[idx]
}

// RegisterSender hands the router a live TCP sender purely for
// observability: its side-channel RTT estimate (see internal/tcp's
// RTTEstimator) is included in the /status debug snapshot. The router
// never reads from or writes to the sender otherwise.
func (r *Router) RegisterSender(tx *tcp.Sender) {
	r.senders = append(r.senders, tx)
}

// AddRoute installs a forwarding entry. nextHop is resolved directly off
// the datagram's destination when hasNextHop is false (the destination is
// on that interface's attached network).
func (r *Router) AddRoute(prefix netif.IPv4Addr, prefixLength uint8, nextHop netif.IPv4Addr, hasNextHop bool, interfaceIdx int) {
	r.routes = append(r.routes, route{
		prefix:       prefix,
		prefixLength: prefixLength,
		nextHop:      nextHop,
		hasNextHop:   hasNextHop,
		interfaceIdx: interfaceIdx,
	})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return r.routes[i].prefixLength > r.routes[j].prefixLength
	})
}

func matches(dst netif.IPv4Addr, prefix netif.IPv4Addr, prefixLength uint8) bool {
	if prefixLength == 0 {
		return true
	}
	shift := 32 - prefixLength
	return uint32(dst)>>shift == uint32(prefix)>>shift
}

// Route drains every interface's inbound datagram queue, decrements TTL
// (dropping expired datagrams), and forwards each surviving datagram via
// the longest matching route. Datagrams matching no route are dropped.
func (r *Router) Route() {
	for _, nic := range r.interfaces {
		for _, dgram := range nic.Inbound() {
			r.forward(dgram)
		}
	}
}

func (r *Router) forward(dgram netif.IPv4Datagram) {
	if dgram.TTL <= 1 {
		r.log.Debug("router: drop expired datagram", "dst", dgram.Dst.String(), "ttl", dgram.TTL)
		return
	}
	dgram.TTL--

	for _, rt := range r.routes {
		if !matches(dgram.Dst, rt.prefix, rt.prefixLength) {
			continue
		}
		nextHop := dgram.Dst
		if rt.hasNextHop {
			nextHop = rt.nextHop
		}
		if err := r.interfaces[rt.interfaceIdx].SendDatagram(dgram, nextHop); err != nil {
			r.log.Warn("router: send failed", "dst", dgram.Dst.String(), "err", err)
		}
		return
	}
	r.log.Debug("router: no matching route", "dst", dgram.Dst.String())
}

// Tick ages every interface's ARP state by ms milliseconds.
func (r *Router) Tick(ms uint64) {
	for _, nic := range r.interfaces {
		nic.Tick(ms)
	}
}

package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// debugStatus is the JSON structure exposed at /status.
type debugStatus struct {
	Interfaces []debugInterfaceInfo `json:"interfaces"`
	Routes     []debugRouteInfo     `json:"routes"`
	Senders    []debugSenderInfo    `json:"senders"`
	DebugAddr  string               `json:"debugAddr"`
}

type debugInterfaceInfo struct {
	Index    int             `json:"index"`
	Ethernet string          `json:"ethernet"`
	IP       string          `json:"ip"`
	ARPCache []debugARPEntry `json:"arpCache"`
}

type debugARPEntry struct {
	IP        string `json:"ip"`
	Ethernet  string `json:"ethernet"`
	AgeMillis uint64 `json:"ageMillis"`
}

type debugRouteInfo struct {
	Prefix       string `json:"prefix"`
	PrefixLength uint8  `json:"prefixLength"`
	NextHop      string `json:"nextHop,omitempty"`
	Interface    int    `json:"interface"`
}

type debugSenderInfo struct {
	Index             int   `json:"index"`
	HasSample         bool  `json:"hasSample"`
	SmoothedRTTMicros int64 `json:"smoothedRTTMicros"`
}

// EnableDebugHTTP starts a small debug server exposing a JSON status dump
// of the router's interfaces and routing table at /status.
func (r *Router) EnableDebugHTTP(addr string) error {
	if addr == "" {
		return nil
	}

	r.debugMu.Lock()
	defer r.debugMu.Unlock()

	if r.debugSrv != nil {
		return fmt.Errorf("debug http already enabled at %s", r.debugAddr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen debug http: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", r.handleDebugStatus)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.debugSrv = srv
	r.debugListener = ln
	r.debugAddr = ln.Addr().String()

	r.debugWG.Add(1)
	go func() {
		defer r.debugWG.Done()
		if err := srv.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) &&
			!errors.Is(err, net.ErrClosed) {
			r.log.Warn("router: debug http serve", "err", err)
		}
	}()

	r.log.Info("router debug http listening", "addr", r.debugAddr)
	return nil
}

// DebugHTTPAddr returns the actual listen address (useful when addr was
// given as ":0"), or "" if debug HTTP was never enabled.
func (r *Router) DebugHTTPAddr() string {
	r.debugMu.Lock()
	defer r.debugMu.Unlock()
	return r.debugAddr
}

// DisableDebugHTTP shuts the debug server down, if running.
func (r *Router) DisableDebugHTTP() error {
	r.debugMu.Lock()
	srv := r.debugSrv
	r.debugSrv = nil
	r.debugAddr = ""
	r.debugMu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Close()
	r.debugWG.Wait()
	return err
}

func (r *Router) handleDebugStatus(w http.ResponseWriter, req *http.Request) {
	status := r.collectDebugStatus()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		r.log.Warn("router: debug status encode", "err", err)
	}
}

func (r *Router) collectDebugStatus() debugStatus {
	status := debugStatus{
		DebugAddr: r.DebugHTTPAddr(),
	}

	for idx, nic := range r.interfaces {
		info := debugInterfaceInfo{
			Index:    idx,
			Ethernet: nic.EthernetAddr().String(),
			IP:       nic.IPv4Addr().String(),
		}
		for _, entry := range nic.ARPCache() {
			info.ARPCache = append(info.ARPCache, debugARPEntry{
				IP:        entry.IP.String(),
				Ethernet:  entry.Eth.String(),
				AgeMillis: entry.AgeMillis,
			})
		}
		status.Interfaces = append(status.Interfaces, info)
	}

	for _, rt := range r.routes {
		info := debugRouteInfo{
			Prefix:       rt.prefix.String(),
			PrefixLength: rt.prefixLength,
			Interface:    rt.interfaceIdx,
		}
		if rt.hasNextHop {
			info.NextHop = rt.nextHop.String()
		}
		status.Routes = append(status.Routes, info)
	}

	for idx, tx := range r.senders {
		rtt := tx.RTT()
		status.Senders = append(status.Senders, debugSenderInfo{
			Index:             idx,
			HasSample:         rtt.HasSample(),
			SmoothedRTTMicros: rtt.SmoothedRTT().Microseconds(),
		})
	}

	return status
}

package netif

import (
	"encoding/binary"
	"fmt"
)

// EtherType identifies the payload carried by an Ethernet frame.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
)

// EthernetHeaderLen is the length of a frame header (no 802.1Q tag).
const EthernetHeaderLen = 14

// EthernetAddr is a 6-byte MAC address.
type EthernetAddr [6]byte

// Broadcast is the all-ones Ethernet broadcast address.
var Broadcast = EthernetAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (a EthernetAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsBroadcast reports whether a is the broadcast address.
func (a EthernetAddr) IsBroadcast() bool {
	return a == Broadcast
}

// EthernetFrame is a frame header plus opaque payload (a serialized IPv4
// datagram or ARP message).
type EthernetFrame struct {
	Dst     EthernetAddr
	Src     EthernetAddr
	Type    EtherType
	Payload []byte
}

// ParseEthernetFrame decodes a frame header and leaves Payload as the
// remaining bytes.
func ParseEthernetFrame(data []byte) (EthernetFrame, error) {
	if len(data) < EthernetHeaderLen {
		return EthernetFrame{}, fmt.Errorf("netif: ethernet frame too short: %d bytes", len(data))
	}
	var f EthernetFrame
	copy(f.Dst[:], data[0:6])
	copy(f.Src[:], data[6:12])
	f.Type = EtherType(binary.BigEndian.Uint16(data[12:14]))
	f.Payload = append([]byte(nil), data[EthernetHeaderLen:]...)
	return f, nil
}

// Serialize encodes the frame header followed by Payload.
func (f EthernetFrame) Serialize() []byte {
	buf := make([]byte, EthernetHeaderLen+len(f.Payload))
	copy(buf[0:6], f.Dst[:])
	copy(buf[6:12], f.Src[:])
	binary.BigEndian.PutUint16(buf[12:14], uint16(f.Type))
	copy(buf[EthernetHeaderLen:], f.Payload)
	return buf
}

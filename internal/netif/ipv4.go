package netif

import (
	"encoding/binary"
	"fmt"
)

// IPv4HeaderLen is the length of a minimal (no-options) IPv4 header.
const IPv4HeaderLen = 20

// IPv4Addr is an IPv4 address in host byte order (numerically comparable,
// which longest-prefix-match arithmetic requires).
type IPv4Addr uint32

// IPv4AddrFromBytes builds an IPv4Addr from four octets in network order.
func IPv4AddrFromBytes(b [4]byte) IPv4Addr {
	return IPv4Addr(binary.BigEndian.Uint32(b[:]))
}

// Bytes returns the address as four octets in network order.
func (a IPv4Addr) Bytes() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return b
}

func (a IPv4Addr) String() string {
	b := a.Bytes()
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// IPv4Datagram is a minimal IPv4 packet: the fields the router and network
// interface inspect, plus an opaque payload. This is a small first-party
// codec, not a general-purpose IP stack — callers only need TTL and
// checksum handling to behave correctly.
type IPv4Datagram struct {
	TTL      uint8
	Protocol uint8
	Checksum uint16
	Src      IPv4Addr
	Dst      IPv4Addr
	Payload  []byte
}

// ParseIPv4Datagram decodes a minimal (no-options) IPv4 datagram.
func ParseIPv4Datagram(data []byte) (IPv4Datagram, error) {
	if len(data) < IPv4HeaderLen {
		return IPv4Datagram{}, fmt.Errorf("netif: ipv4 header too short: %d bytes", len(data))
	}
	verIHL := data[0]
	if verIHL>>4 != 4 {
		return IPv4Datagram{}, fmt.Errorf("netif: unsupported ip version %d", verIHL>>4)
	}
	headerLen := int(verIHL&0x0f) * 4
	if headerLen < IPv4HeaderLen || len(data) < headerLen {
		return IPv4Datagram{}, fmt.Errorf("netif: invalid ipv4 header length %d", headerLen)
	}

	var d IPv4Datagram
	d.TTL = data[8]
	d.Protocol = data[9]
	d.Checksum = binary.BigEndian.Uint16(data[10:12])
	d.Src = IPv4Addr(binary.BigEndian.Uint32(data[12:16]))
	d.Dst = IPv4Addr(binary.BigEndian.Uint32(data[16:20]))
	d.Payload = append([]byte(nil), data[headerLen:]...)
	return d, nil
}

// Serialize encodes the datagram, recomputing the checksum over the header.
func (d IPv4Datagram) Serialize() []byte {
	buf := make([]byte, IPv4HeaderLen+len(d.Payload))
	totalLen := len(buf)

	buf[0] = (4 << 4) | (IPv4HeaderLen / 4)
	buf[1] = 0 // TOS
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], 0) // identification
	binary.BigEndian.PutUint16(buf[6:8], 0) // flags/fragment offset
	buf[8] = d.TTL
	buf[9] = d.Protocol
	srcBytes := d.Src.Bytes()
	dstBytes := d.Dst.Bytes()
	copy(buf[12:16], srcBytes[:])
	copy(buf[16:20], dstBytes[:])

	binary.BigEndian.PutUint16(buf[10:12], ComputeChecksum(buf[:IPv4HeaderLen]))
	copy(buf[IPv4HeaderLen:], d.Payload)
	return buf
}

// ComputeChecksum is the IPv4 header checksum routine: a standard
// one's-complement-sum implementation, used both when building new
// headers and when recomputing the checksum after Router decrements TTL.
func ComputeChecksum(header []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(header); i += 2 {
		if i == 10 {
			continue // skip the existing checksum field itself
		}
		sum += uint32(binary.BigEndian.Uint16(header[i : i+2]))
	}
	if len(header)%2 == 1 {
		sum += uint32(header[len(header)-1]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

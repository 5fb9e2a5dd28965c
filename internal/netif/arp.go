package netif

import (
	"encoding/binary"
	"fmt"
)

// ARPMessageLen is the length of an Ethernet/IPv4 ARP message.
const ARPMessageLen = 28

const (
	arpHardwareEthernet = 1
	arpProtoIPv4        = 0x0800
)

// ARP opcodes.
const (
	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
)

// ARPMessage is an Ethernet/IPv4 ARP request or reply.
type ARPMessage struct {
	Opcode    uint16
	SenderEth EthernetAddr
	SenderIP  IPv4Addr
	TargetEth EthernetAddr
	TargetIP  IPv4Addr
}

// ParseARPMessage decodes an Ethernet/IPv4 ARP message, rejecting any other
// hardware/protocol combination.
func ParseARPMessage(data []byte) (ARPMessage, error) {
	if len(data) < ARPMessageLen {
		return ARPMessage{}, fmt.Errorf("netif: arp message too short: %d bytes", len(data))
	}
	hwType := binary.BigEndian.Uint16(data[0:2])
	protoType := binary.BigEndian.Uint16(data[2:4])
	hwSize := data[4]
	protoSize := data[5]
	if hwType != arpHardwareEthernet || protoType != arpProtoIPv4 || hwSize != 6 || protoSize != 4 {
		return ARPMessage{}, fmt.Errorf("netif: unsupported arp hw/proto combination")
	}

	var m ARPMessage
	m.Opcode = binary.BigEndian.Uint16(data[6:8])
	copy(m.SenderEth[:], data[8:14])
	m.SenderIP = IPv4Addr(binary.BigEndian.Uint32(data[14:18]))
	copy(m.TargetEth[:], data[18:24])
	m.TargetIP = IPv4Addr(binary.BigEndian.Uint32(data[24:28]))
	return m, nil
}

// Serialize encodes the ARP message for an Ethernet/IPv4 network.
func (m ARPMessage) Serialize() []byte {
	buf := make([]byte, ARPMessageLen)
	binary.BigEndian.PutUint16(buf[0:2], arpHardwareEthernet)
	binary.BigEndian.PutUint16(buf[2:4], arpProtoIPv4)
	buf[4] = 6
	buf[5] = 4
	binary.BigEndian.PutUint16(buf[6:8], m.Opcode)
	copy(buf[8:14], m.SenderEth[:])
	senderIP := m.SenderIP.Bytes()
	copy(buf[14:18], senderIP[:])
	copy(buf[18:24], m.TargetEth[:])
	targetIP := m.TargetIP.Bytes()
	copy(buf[24:28], targetIP[:])
	return buf
}

// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

// Package modbusengine is a minimal Modbus/TCP client adapted from
// hootrhino/gomodbus's TCP transport, narrowed to what the bridge needs:
// dial, read discrete inputs (function code 2), and close. It drops the
// upstream transporter's connection pooling, built-in retry loop, and
// keep-alive tuning; the group engine above it (engine.go) owns
// reconnect/backoff and retry policy per the bridge's own contract.
package modbusengine

import (
	"encoding/binary"
	"fmt"
)

// Modbus TCP protocol constants.
const (
	tcpHeaderLength       = 7 // MBAP header: transaction id (2) + protocol id (2) + length (2) + unit id (1)
	protocolIdentifierTCP = 0
	maxPDULength          = 253
	maxTCPFrameLength     = tcpHeaderLength + maxPDULength

	funcCodeReadDiscreteInputs = 0x02
)

// packRequest builds a complete MBAP frame for a Read Discrete Inputs
// request (function code 2).
func packRequest(transactionID uint16, unitID uint8, address, quantity uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = funcCodeReadDiscreteInputs
	binary.BigEndian.PutUint16(pdu[1:3], address)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)

	length := uint16(len(pdu) + 1) // + unit id
	frame := make([]byte, tcpHeaderLength+len(pdu))
	binary.BigEndian.PutUint16(frame[0:2], transactionID)
	binary.BigEndian.PutUint16(frame[2:4], protocolIdentifierTCP)
	binary.BigEndian.PutUint16(frame[4:6], length)
	frame[6] = unitID
	copy(frame[7:], pdu)
	return frame
}

// unpackResponse validates the MBAP header and returns the transaction id,
// the unit id, and the response PDU (function code onward) unchanged.
func unpackResponse(header []byte, body []byte) (transactionID uint16, unitID uint8, pdu []byte, err error) {
	if len(header) != tcpHeaderLength {
		return 0, 0, nil, fmt.Errorf("modbus: invalid MBAP header length %d", len(header))
	}
	transactionID = binary.BigEndian.Uint16(header[0:2])
	protocolID := binary.BigEndian.Uint16(header[2:4])
	unitID = header[6]
	if protocolID != protocolIdentifierTCP {
		return 0, 0, nil, fmt.Errorf("modbus: invalid protocol identifier 0x%04X", protocolID)
	}
	if len(body) > maxPDULength {
		return 0, 0, nil, fmt.Errorf("modbus: PDU length %d exceeds maximum %d", len(body), maxPDULength)
	}
	return transactionID, unitID, body, nil
}

// bodyLength extracts the PDU body length (excluding unit id) from the
// 2-byte big-endian length field of an MBAP header.
func bodyLength(header []byte) (int, error) {
	if len(header) != tcpHeaderLength {
		return 0, fmt.Errorf("modbus: invalid MBAP header length %d", len(header))
	}
	length := binary.BigEndian.Uint16(header[4:6])
	if length == 0 {
		return 0, fmt.Errorf("modbus: invalid length field: zero")
	}
	n := int(length) - 1
	if n < 0 {
		return 0, fmt.Errorf("modbus: invalid PDU length %d", n)
	}
	return n, nil
}

// decodeBits decodes a Read Discrete Inputs response payload (byte count +
// packed bits) into an ordered boolean sequence, one entry per requested
// input, little-endian within each byte per Modbus convention.
func decodeBits(pdu []byte, quantity uint16) ([]bool, error) {
	if len(pdu) < 2 {
		return nil, fmt.Errorf("modbus: response too short")
	}
	if pdu[0] == funcCodeReadDiscreteInputs|0x80 {
		exceptionCode := byte(0)
		if len(pdu) > 1 {
			exceptionCode = pdu[1]
		}
		return nil, &ModbusError{FunctionCode: pdu[0], ExceptionCode: exceptionCode}
	}
	if pdu[0] != funcCodeReadDiscreteInputs {
		return nil, fmt.Errorf("modbus: unexpected function code 0x%02X", pdu[0])
	}
	count := int(pdu[1])
	data := pdu[2:]
	if count != len(data) {
		return nil, fmt.Errorf("modbus: byte count %d does not match payload length %d", count, len(data))
	}
	bits := make([]bool, 0, quantity)
	for i := 0; i < int(quantity); i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		if byteIdx >= len(data) {
			break
		}
		bits = append(bits, data[byteIdx]&(1<<bitIdx) != 0)
	}
	return bits, nil
}

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

package modbusengine

import (
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// Client is a single Modbus/TCP connection bound to one host:port/unitID,
// adapted from hootrhino/gomodbus's TCPTransporter. Unlike the upstream
// transporter it has no internal retry loop: the group engine decides
// whether a failed read gets retried (it never does, per the bridge's
// reconnect-on-next-tick contract).
type Client struct {
	conn          net.Conn
	unitID        uint8
	timeout       time.Duration
	transactionID uint32
}

// Dial connects to addr ("host:port") and returns a Client bound to unitID.
// The returned Client issues one request at a time; it is not safe for
// concurrent use.
func Dial(addr string, unitID uint8, dialTimeout, requestTimeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("modbus: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, unitID: unitID, timeout: requestTimeout}, nil
}

func (c *Client) nextTransactionID() uint16 {
	id := atomic.AddUint32(&c.transactionID, 1)
	return uint16(id & 0xFFFF)
}

// ReadDiscreteInputs issues function code 2 (Read Discrete Inputs) starting
// at address for quantity inputs, and returns them as an ordered boolean
// sequence with the first entry corresponding to address.
func (c *Client) ReadDiscreteInputs(address, quantity uint16) ([]bool, error) {
	if quantity < 1 || quantity > 2000 {
		return nil, fmt.Errorf("modbus: quantity %d must be between 1 and 2000", quantity)
	}

	txID := c.nextTransactionID()
	frame := packRequest(txID, c.unitID, address, quantity)

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("modbus: set deadline: %w", err)
	}
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("modbus: write request: %w", err)
	}

	header := make([]byte, tcpHeaderLength)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, fmt.Errorf("modbus: read MBAP header: %w", err)
	}
	n, err := bodyLength(header)
	if err != nil {
		return nil, err
	}
	body := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return nil, fmt.Errorf("modbus: read PDU (%d bytes): %w", n, err)
		}
	}

	respTxID, _, pdu, err := unpackResponse(header, body)
	if err != nil {
		return nil, err
	}
	if respTxID != txID {
		return nil, fmt.Errorf("modbus: transaction id mismatch: sent 0x%04X got 0x%04X", txID, respTxID)
	}

	bits, err := decodeBits(pdu, quantity)
	if err != nil {
		return nil, err
	}
	if len(bits) < int(quantity) {
		return nil, fmt.Errorf("modbus: response carries %d bits, wanted %d", len(bits), quantity)
	}
	return bits, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

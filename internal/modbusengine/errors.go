package modbusengine

import "fmt"

// ModbusError reports a Modbus exception response: the server answered
// with the request's function code plus 0x80 and an exception code,
// adapted from hootrhino/gomodbus's client.go responseError helper.
type ModbusError struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ModbusError) Error() string {
	return fmt.Sprintf("modbus: exception function=0x%02X code=0x%02X (%s)",
		e.FunctionCode, e.ExceptionCode, exceptionMessage(e.ExceptionCode))
}

func exceptionMessage(code byte) string {
	switch code {
	case 0x01:
		return "illegal function"
	case 0x02:
		return "illegal data address"
	case 0x03:
		return "illegal data value"
	case 0x04:
		return "slave device failure"
	case 0x05:
		return "acknowledge"
	case 0x06:
		return "slave device busy"
	case 0x08:
		return "memory parity error"
	case 0x0A:
		return "gateway path unavailable"
	case 0x0B:
		return "gateway target device failed to respond"
	default:
		return "unknown exception"
	}
}

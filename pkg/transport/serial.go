package transport

import (
	"io"

	"github.com/jacobsa/go-serial/serial"
)

// DefaultBaudRate of serial ports.
const DefaultBaudRate = 115200

// OpenSerial opens a serial port 8N1.
func OpenSerial(portName string, baudRate uint) (io.ReadWriteCloser, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	options := serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}
	return serial.Open(options)
}

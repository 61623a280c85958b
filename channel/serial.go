package channel

import (
	"io"
	"os"

	"go.bug.st/serial"
)

// openSerial opens a serial device with the driver read timeout armed, so
// receive loops wake up to re-check cancellation the same way socket
// deadlines do.
func openSerial(device string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return serialConn{port}, nil
}

// serialConn converts the driver's zero-byte timeout reads into deadline
// errors, giving serial links the same timeout shape as sockets.
type serialConn struct {
	serial.Port
}

func (s serialConn) Read(p []byte) (int, error) {
	n, err := s.Port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

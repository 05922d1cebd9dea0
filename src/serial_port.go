package borzoi

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to serial ports, hiding the differences
 *		between a real device and a pseudo terminal.
 *
 *---------------------------------------------------------------*/

import (
	"io"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

type serial_handle interface {
	io.ReadWriteCloser
}

/*-------------------------------------------------------------------
 *
 * Name:	serial_port_open
 *
 * Purpose:	Open a serial port in raw mode.
 *
 * Inputs:	devicename	- Usually /dev/tty...
 *				  Could be /dev/rfcomm0 for Bluetooth.
 *				  The special name "PTY" creates a
 *				  pseudo terminal pair instead; the
 *				  slave name is logged for clients to
 *				  attach to.
 *
 *		baud		- Speed.  1200, 4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 * Returns:	Handle for the port.
 *
 *---------------------------------------------------------------*/

func serial_port_open(devicename string, baud int, ex *exception_t) serial_handle {
	if devicename == "PTY" {
		var master, slave, err = pty.Open()
		if err != nil {
			exception_fill(ex, EIO, "SerialPort", "serial_port_open",
				"Could not create pseudo terminal", err.Error())
			return nil
		}
		var name = slave.Name()
		slave.Close()
		DBG_INFO("Virtual TNC is available on", name)
		return master
	}

	var fd, err = term.Open(devicename, term.RawMode)
	if err != nil {
		exception_fill(ex, EIO, "SerialPort", "serial_port_open",
			"Could not open serial port", devicename)
		return nil
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		fd.SetSpeed(baud)
	default:
		DBG_ERROR("Unsupported speed, using 9600", devicename)
		fd.SetSpeed(9600)
	}
	return fd
}

/*-------------------------------------------------------------------
 *
 * Name:	serial_port_write / serial_port_read
 *
 * Purpose:	Byte I/O on an open port.
 *
 * Returns:	Number of bytes transferred, -1 on error.
 *
 *---------------------------------------------------------------*/

func serial_port_write(fd serial_handle, data []byte) int {
	if fd == nil {
		return -1
	}
	var written, err = fd.Write(data)
	if written != len(data) || err != nil {
		return -1
	}
	return written
}

func serial_port_read(fd serial_handle, data []byte) int {
	if fd == nil {
		return -1
	}
	var n, err = fd.Read(data)
	if err != nil {
		return -1
	}
	return n
}

func serial_port_close(fd serial_handle) {
	if fd == nil {
		return
	}
	fd.Close()
}

// +build windows

package ctlsock

import (
	"net"

	"github.com/Microsoft/go-winio"
)

const pipeName = `\\.\pipe\rina-ipcpd`

func listen() (net.Listener, error) {
	return winio.ListenPipe(pipeName, nil)
}

func dial() (net.Conn, error) {
	return winio.DialPipe(pipeName, nil)
}

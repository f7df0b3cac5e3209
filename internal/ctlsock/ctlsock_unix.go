// +build !windows

package ctlsock

import "net"
import "os"

func listen() (net.Listener, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	// delete a stale socket left by an unclean shutdown
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

func dial() (net.Conn, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return net.Dial("unix", path)
}

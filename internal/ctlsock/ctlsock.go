// Package ctlsock locates and listens on the local control socket
// ipcpctl uses to talk to ipcpd, the same way the teacher's
// common/socket package located the daemon's UNIX socket under the
// user's home directory (krd.sock) — generalised to a platform split
// between a UNIX socket and, on Windows, a go-winio named pipe.
package ctlsock

import (
	"net"
	"os"
	"os/user"
	"path/filepath"
)

const socketFilename = "ipcpd.sock"

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

func homeDir() string {
	if u, err := user.Lookup(currentUser()); err == nil && u != nil {
		return u.HomeDir
	}
	return os.Getenv("HOME")
}

// Dir returns (creating if needed) the directory the control socket
// lives in.
func Dir() (string, error) {
	dir := filepath.Join(homeDir(), ".rina-ipcp")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns the control socket's filesystem path (on Windows, this
// is unused — listen and dial use a named pipe instead).
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, socketFilename), nil
}

// Listen opens the platform-appropriate control listener: a UNIX
// socket everywhere but Windows, a go-winio named pipe there.
func Listen() (net.Listener, error) {
	return listen()
}

// Dial connects to the control listener.
func Dial() (net.Conn, error) {
	return dial()
}

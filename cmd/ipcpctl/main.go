// ipcpctl is the CLI that talks to a running ipcpd over its control
// socket. Grounded on the teacher's kr/kr.go: a urfave/cli.App with
// one cli.Command per operation, PrintErr/PrintFatal helpers writing
// to stderr, colourised with fatih/color gated on whether stdout is a
// terminal.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli"

	"github.com/rlite-go/normal/internal/ctlsock"
)

func PrintErr(w io.Writer, msg string, args ...interface{}) {
	fmt.Fprintf(w, msg+"\n", args...)
}

func PrintFatal(w io.Writer, msg string, args ...interface{}) {
	PrintErr(w, msg, args...)
	os.Exit(1)
}

func controlRequest(method, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, "http://ipcpd"+path, &buf)
	if err != nil {
		return nil, err
	}

	conn, err := ctlsock.Dial()
	if err != nil {
		return nil, fmt.Errorf("could not connect to ipcpd, is it running? %w", err)
	}
	defer conn.Close()

	if err := req.Write(conn); err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(conn), req)
}

func configCommand(c *cli.Context) error {
	name := c.Args().Get(0)
	value := c.Args().Get(1)
	if name == "" || value == "" {
		return cli.NewExitError("usage: ipcpctl config <name> <value>", 1)
	}
	resp, err := controlRequest(http.MethodPut, "/config", map[string]string{"name": name, "value": value})
	if err != nil {
		PrintFatal(os.Stderr, "%s", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		PrintFatal(os.Stderr, "config failed: %s", string(body))
	}
	PrintErr(os.Stdout, color.GreenString("ok"))
	return nil
}

func main() {
	out := colorable.NewColorableStdout()
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())

	app := cli.NewApp()
	app.Name = "ipcpctl"
	app.Usage = "control a running normal IPC process daemon"
	app.Commands = []cli.Command{
		{
			Name:   "config",
			Usage:  "set a configuration key, e.g. `ipcpctl config address 100`",
			Action: configCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(out, err)
		os.Exit(1)
	}
}

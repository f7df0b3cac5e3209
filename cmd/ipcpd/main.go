// ipcpd is the normal IPC process daemon: it hosts one engine
// instance, serves the control socket ipcpctl talks to, and answers
// HTTP metrics scrapes.
//
// Grounded on the teacher's krd/main.go: panic recovery with a logged
// stack trace, a signal channel draining on SIGINT/SIGTERM/SIGHUP,
// deferred listener cleanup.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rlite-go/normal/internal/corelog"
	"github.com/rlite-go/normal/internal/ctlsock"
	"github.com/rlite-go/normal/internal/ipcp"
)

func useSyslog() bool {
	if env := os.Getenv("IPCPD_LOG_SYSLOG"); env != "" {
		return env == "true"
	}
	return true
}

var log = corelog.Setup("ipcpd", logging.INFO, useSyslog())

func main() {
	defer func() {
		if x := recover(); x != nil {
			log.Error(fmt.Sprintf("run time panic: %v", x))
			log.Error(string(debug.Stack()))
			panic(x)
		}
	}()

	engine := ipcp.New("default", log)

	ctl, err := ctlsock.Listen()
	if err != nil {
		log.Fatal(err)
	}
	defer ctl.Close()

	srv := NewControlServer(engine, log)
	go func() {
		if err := srv.Serve(ctl); err != nil {
			log.Error("control server exited:", err)
		}
	}()

	if addr := os.Getenv("IPCPD_METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registerCollector(engine), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("metrics server exited:", err)
			}
		}()
	}

	log.Notice("ipcpd launched and listening on the control socket")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	sig, ok := <-stop
	if ok {
		log.Notice("stopping with signal", sig)
	}
	engine.Destroy()
}

// Command toad-client is a minimal demonstration client, grounded on
// kwap/examples/blocking/client.rs: it pings the server, then issues
// Confirmable GETs for "hello", for "black_hole" (a path that never
// answers, to show a timeout rather than hanging forever), and for
// "dropped".
package main

import (
	"flag"
	"net"
	"time"

	"github.com/giterlab/toad/blocking"
	"github.com/giterlab/toad/internal/logging"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:5683", "server address")
	flag.Parse()
	logging.Enable(true)

	addr, err := net.ResolveUDPAddr("udp", *addrFlag)
	if err != nil {
		logging.Error("toad-client: resolve %s: %v", *addrFlag, err)
		return
	}

	client, err := blocking.Dial()
	if err != nil {
		logging.Error("toad-client: dial: %v", err)
		return
	}
	defer client.Close()

	logging.Info("toad-client: PING %v", addr)
	if err := client.Ping(addr, 3*time.Second); err != nil {
		logging.Error("toad-client: ping failed: %v", err)
	} else {
		logging.Info("toad-client: pinged ok")
	}

	logging.Info("toad-client: CON GET /hello")
	if resp, err := client.Get("hello", addr, 3*time.Second); err != nil {
		logging.Error("toad-client: %v", err)
	} else {
		logging.Info("toad-client: ok! %s %q", resp.Code.Name(), resp.Payload)
	}

	logging.Info("toad-client: CON GET /black_hole (expect timeout)")
	if _, err := client.Get("black_hole", addr, 3*time.Second); err != nil {
		logging.Info("toad-client: ok, as expected: %v", err)
	} else {
		logging.Error("toad-client: unexpectedly got a response from black_hole")
	}

	logging.Info("toad-client: CON GET /dropped")
	if resp, err := client.Get("dropped", addr, 3*time.Second); err != nil {
		logging.Error("toad-client: %v", err)
	} else {
		logging.Info("toad-client: ok! %s", resp.Code.Name())
	}
}

// Command toad-server is a minimal demonstration server, grounded on
// kwap/examples/blocking/server.rs's hello/not-found middleware chain:
// GET /hello answers "hello, world!", GET /black_hole never answers with a
// response (the engine still acks a Confirmable request, so a client
// waiting on it times out), and anything else answers NotFound.
package main

import (
	"flag"
	"net"

	"github.com/giterlab/toad/blocking"
	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
)

func handle(addr net.Addr, req *message.Message) *message.Message {
	path := req.Options.Path()
	logging.Info("toad-server: %s %s from %v", req.Code.Name(), path, addr)

	switch path {
	case "hello":
		resp := message.New(ackTypeFor(req), message.Content, req.ID)
		resp.Token = req.Token
		resp.Payload = []byte("hello, world!")
		return resp
	case "black_hole":
		// Deliberately never respond. The Ack-Generator has already acked a
		// Confirmable request, so the client's exchange settles as acked and
		// the client waits for a response until its own timeout.
		return nil
	default:
		resp := message.New(ackTypeFor(req), message.NotFound, req.ID)
		resp.Token = req.Token
		return resp
	}
}

// ackTypeFor mirrors server.rs's Resp::ack/Resp::con split: a Confirmable
// request gets an Ack-carried response (piggybacked), a Non-confirmable
// request gets a Non response.
func ackTypeFor(req *message.Message) message.Type {
	if req.Type == message.Con {
		return message.Ack
	}
	return message.Non
}

func main() {
	addr := flag.String("addr", ":5683", "address to listen on")
	flag.Parse()

	logging.Enable(true)
	logging.Info("toad-server: listening on %s", *addr)

	if err := blocking.ListenAndServe("udp", *addr, blocking.FuncHandler(handle)); err != nil {
		logging.Error("toad-server: %v", err)
	}
}

package message

import "fmt"

// Type is the CoAP message type: Con, Non, Ack, or Reset.
type Type uint8

const (
	// Con messages require acknowledgement.
	Con Type = 0
	// Non messages do not require acknowledgement.
	Non Type = 1
	// Ack acknowledges a Con.
	Ack Type = 2
	// Reset rejects a message whose context is lost.
	Reset Type = 3
)

var typeNames = [4]string{
	Con:   "Con",
	Non:   "Non",
	Ack:   "Ack",
	Reset: "Reset",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Unknown (0x%x)", uint8(t))
}

// Retransmissible reports whether messages of this type participate in the
// Confirmable retransmission lifecycle (§4.9). Only Con is retransmitted.
func (t Type) Retransmissible() bool {
	return t == Con
}

package chat

import (
	"context"

	"BeepPager/module/protocol"
)

// Handler executes one inbound command kind for a connection.
type Handler interface {
	Cmd() string
	Handle(*ChatContext, protocol.Command, *Conn) error
}

// ChatContext is handed to every Handler. Handlers reach shared state through S
// and never keep a reference to it on the connection.
type ChatContext struct {
	S   *Server
	Ctx context.Context
}

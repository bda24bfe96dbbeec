package chat

import (
	"BeepPager/module/protocol"

	"github.com/pkg/errors"
)

var ErrNoHandler = errors.New("no handler for command")

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Cmd()] = h }

func (d *Dispatcher) Dispatch(ctx *ChatContext, cmd protocol.Command, conn *Conn) error {
	h, ok := d.handlers[cmd.Cmd()]
	if !ok {
		return errors.Wrapf(ErrNoHandler, "cmd=%s", cmd.Cmd())
	}
	return h.Handle(ctx, cmd, conn)
}

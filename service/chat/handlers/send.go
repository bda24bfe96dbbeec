package handlers

import (
	"BeepPager/module/protocol"
	"BeepPager/service/chat"

	"github.com/pkg/errors"
)

type SendMessageHandler struct{}

func NewSendMessageHandler() chat.Handler { return &SendMessageHandler{} }
func (h *SendMessageHandler) Cmd() string { return protocol.CmdSendMessage }

func (h *SendMessageHandler) Handle(ctx *chat.ChatContext, cmd protocol.Command, conn *chat.Conn) error {
	c, ok := cmd.(protocol.SendMessage)
	if !ok {
		return errors.Errorf("send_message handler got %T", cmd)
	}
	return ctx.S.SendMessage(ctx.Ctx, conn, c.Receiver, c.Contents)
}

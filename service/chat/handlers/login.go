package handlers

import (
	"BeepPager/module/protocol"
	"BeepPager/service/chat"

	"github.com/pkg/errors"
)

type LoginHandler struct{}

func NewLoginHandler() chat.Handler { return &LoginHandler{} }
func (h *LoginHandler) Cmd() string { return protocol.CmdLogin }

func (h *LoginHandler) Handle(ctx *chat.ChatContext, cmd protocol.Command, conn *chat.Conn) error {
	c, ok := cmd.(protocol.Login)
	if !ok {
		return errors.Errorf("login handler got %T", cmd)
	}
	return ctx.S.Login(ctx.Ctx, conn, c.UserToken, c.DeviceToken, c.SecretKey)
}

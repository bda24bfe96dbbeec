package handlers

import (
	"BeepPager/module/protocol"
	"BeepPager/service/chat"

	"github.com/pkg/errors"
)

type SyncHandler struct{}

func NewSyncHandler() chat.Handler { return &SyncHandler{} }
func (h *SyncHandler) Cmd() string { return protocol.CmdSync }

func (h *SyncHandler) Handle(ctx *chat.ChatContext, cmd protocol.Command, conn *chat.Conn) error {
	c, ok := cmd.(protocol.Sync)
	if !ok {
		return errors.Errorf("sync handler got %T", cmd)
	}
	return ctx.S.SubscribeOrSync(ctx.Ctx, conn, c.DevicePts)
}

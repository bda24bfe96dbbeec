package handlers

import "BeepPager/service/chat"

// RegisterAll installs the handler of every inbound command.
func RegisterAll(d *chat.Dispatcher) {
	d.Register(NewLoginHandler())
	d.Register(NewSyncHandler())
	d.Register(NewSendMessageHandler())
}

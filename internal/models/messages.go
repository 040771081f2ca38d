package models

// 推送给 overlay / dashboard 的消息类型
const (
	MsgConnected       = "connected"
	MsgNewEvent        = "new_event"
	MsgShowDonation    = "show_donation"
	MsgEventApproved   = "event_approved"
	MsgEventSkipped    = "event_skipped"
	MsgAutoModeChanged = "auto_mode_changed"
	MsgDashboardInit   = "dashboard_init"
	MsgEventsCleared   = "events_cleared"
	MsgPing            = "ping"
	MsgPong            = "pong"
	MsgError           = "error"
)

// dashboard 发来的指令
const (
	CmdApprove    = "approve"
	CmdSkip       = "skip"
	CmdToggleAuto = "toggle_auto"
	CmdSetAuto    = "set_auto"
	CmdClear      = "clear"
	CmdPing       = "ping"
)

type ConnectedMessage struct {
	Type   string `json:"type"`
	Client string `json:"client"`
}

// EventMessage new_event / show_donation
type EventMessage struct {
	Type  string         `json:"type"`
	Event *DonationEvent `json:"event"`
}

// EventIDMessage event_approved / event_skipped
type EventIDMessage struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
}

type AutoModeMessage struct {
	Type     string `json:"type"`
	AutoMode bool   `json:"auto_mode"`
}

type DashboardInitMessage struct {
	Type          string          `json:"type"`
	PendingEvents []DonationEvent `json:"pending_events"`
	AutoMode      bool            `json:"auto_mode"`
}

type EventsClearedMessage struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// TypeMessage 只有 type 字段的消息，例如 ping / pong
type TypeMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	EventID string `json:"event_id,omitempty"`
}

// DashboardCommand dashboard websocket 指令
type DashboardCommand struct {
	Type     string `json:"type"`
	EventID  string `json:"event_id,omitempty"`
	AutoMode *bool  `json:"auto_mode,omitempty"`
}

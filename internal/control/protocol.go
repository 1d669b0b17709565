package control

type MessageType string

// Outbound notifications.
const (
	MsgAnimations MessageType = "animations"
	MsgError      MessageType = "error"
	MsgDebug      MessageType = "debug"
)

// Inbound commands.
const (
	CmdPlay      MessageType = "play"
	CmdPause     MessageType = "pause"
	CmdAnimation MessageType = "animation"
	CmdScale     MessageType = "scale"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// Command is a client request. Session and Name are used by animation, Scale
// by scale.
type Command struct {
	Type    MessageType `json:"type"`
	Session string      `json:"session,omitempty"`
	Name    string      `json:"name,omitempty"`
	Scale   float32     `json:"scale,omitempty"`
}

type AnimationsPayload struct {
	Session string   `json:"session"`
	Names   []string `json:"names"`
}

type ErrorPayload struct {
	Session string `json:"session,omitempty"`
	Message string `json:"message"`
}

type DebugPayload struct {
	Session string `json:"session"`
	Line    string `json:"line"`
}

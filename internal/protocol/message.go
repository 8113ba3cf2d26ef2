package protocol

import (
	"encoding/json"
	"time"
)

// Kind is the closed set of request types a client may send. The session
// dispatch switches over these exhaustively; an unrecognized value falls
// through to the unknown-command reply.
type Kind string

const (
	KindRegister     Kind = "register"
	KindLogin        Kind = "login"
	KindSend         Kind = "send"
	KindSendGroup    Kind = "send_group"
	KindCreateGroup  Kind = "create_group"
	KindJoinGroup    Kind = "join_group"
	KindGroupMembers Kind = "group_members"
	KindHistory      Kind = "history"
	KindStats        Kind = "stats"
	KindPing         Kind = "ping"
)

// Response type tags.
const (
	TypeOK           = "ok"
	TypeError        = "error"
	TypeMessage      = "message"
	TypeHistory      = "history"
	TypeGroupMembers = "group_members"
	TypeStats        = "stats"
	TypePong         = "pong"
)

// TimeLayout is how timestamps are rendered on the wire.
const TimeLayout = "2006-01-02 15:04:05"

// UDP discovery tokens. A probe carrying DiscoveryProbe is answered with
// DiscoveryReply sent to the probe's source address; nothing else crosses
// the discovery socket.
const (
	DiscoveryProbe = "DISCOVER_SERVER"
	DiscoveryReply = "I_AM_SERVER"
)

// Request is one decoded client frame. Which fields are meaningful depends
// on Type; unused fields stay zero.
type Request struct {
	Type     Kind   `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	To       string `json:"to,omitempty"`
	Group    string `json:"group,omitempty"`
	Message  string `json:"message,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// DecodeRequest parses a frame payload into a Request.
func DecodeRequest(payload []byte) (*Request, error) {
	req := &Request{}
	if err := json.Unmarshal(payload, req); err != nil {
		return nil, err
	}
	return req, nil
}

// HistoryEntry is one row of a history response.
type HistoryEntry struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	TS      string `json:"ts"`
}

// Response is one server-to-client frame: a reply to a request or an
// asynchronously pushed message event.
type Response struct {
	Type     string         `json:"type"`
	Message  string         `json:"message,omitempty"`
	From     string         `json:"from,omitempty"`
	TS       string         `json:"ts,omitempty"`
	Group    string         `json:"group,omitempty"`
	Data     string         `json:"data,omitempty"`
	Messages []HistoryEntry `json:"messages,omitempty"`
	Members  []string       `json:"members,omitempty"`
}

// Encode serializes the response for framing.
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// OK builds a plain success reply.
func OK() *Response {
	return &Response{Type: TypeOK}
}

// Errorf builds an error reply with the given client-facing message.
func Errorf(msg string) *Response {
	return &Response{Type: TypeError, Message: msg}
}

// FormatTime renders a store-assigned timestamp for the wire.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

package domain

// Frame types a client sends.
const (
	FrameAuth        = "auth"
	FrameJoinChat    = "join_chat"
	FrameLeaveChat   = "leave_chat"
	FrameSendMessage = "send_message"
	FramePing        = "ping"
)

// Frame types the server replies with on the requesting connection. Live
// events use the event type names instead.
const (
	FrameAuthResult = "auth_result"
	FrameChatJoined = "chat_joined"
	FrameChatLeft   = "chat_left"
	FrameMessageAck = "message_ack"
	FrameError      = "error"
	FramePong       = "pong"
)

// CodeBadRequest marks frames the server could not parse. Every other error
// frame carries a Kind.
const CodeBadRequest = "BAD_REQUEST"

// Frame is any client frame. Which fields matter depends on Type.
type Frame struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	Content   string `json:"content,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuthResult struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

func AuthAccepted(userID, username string) *AuthResult {
	return &AuthResult{Type: FrameAuthResult, Success: true, UserID: userID, Username: username}
}

func AuthRejected(reason string) *AuthResult {
	return &AuthResult{Type: FrameAuthResult, Message: reason}
}

// ChatReply confirms a join or a leave.
type ChatReply struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

func ChatJoined(chatID string) *ChatReply { return &ChatReply{Type: FrameChatJoined, ChatID: chatID} }

func ChatLeft(chatID string) *ChatReply { return &ChatReply{Type: FrameChatLeft, ChatID: chatID} }

type MessageAck struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id,omitempty"`
	Message   *Message `json:"message"`
}

func Acknowledge(requestID string, msg *Message) *MessageAck {
	return &MessageAck{Type: FrameMessageAck, RequestID: requestID, Message: msg}
}

type Pong struct {
	Type string `json:"type"`
}

func NewPong() *Pong { return &Pong{Type: FramePong} }

type ErrorFrame struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// BadFrame reports a frame that could not be understood.
func BadFrame(message string) *ErrorFrame {
	return &ErrorFrame{Type: FrameError, Code: CodeBadRequest, Message: message}
}

// ErrorFrameOf reports a failed request. Internal errors are not exposed.
func ErrorFrameOf(err error, requestID string) *ErrorFrame {
	return &ErrorFrame{
		Type:      FrameError,
		Code:      string(KindOf(err)),
		Message:   MessageOf(err),
		RequestID: requestID,
	}
}

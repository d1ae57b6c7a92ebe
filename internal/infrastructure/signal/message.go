package signal

import "encoding/json"

// Message is the JSON envelope spoken on every signaling connection.
// The direct-peer endpoint uses offer/answer/candidate/close; the broker
// protocols add the register/accept/reject handshake around them.
type Message struct {
	Type string `json:"type"`

	// Session description payloads.
	SDP string `json:"sdp,omitempty"`

	// Trickled candidate, wrapped the way browser clients emit it.
	ICE *ICECandidate `json:"ice,omitempty"`

	// Broker register handshake.
	ChannelID    string                 `json:"channel_id,omitempty"`
	ClientID     string                 `json:"client_id,omitempty"`
	SignalingKey string                 `json:"signaling_key,omitempty"`
	AuthToken    string                 `json:"auth_token,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Video        *MediaDescription      `json:"video,omitempty"`
	Audio        *MediaDescription      `json:"audio,omitempty"`

	// Accept/reject results.
	IsExistClient bool   `json:"is_exist_client,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ICECandidate mirrors the browser's RTCIceCandidateInit shape.
type ICECandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

// MediaDescription advertises one media section of a register payload.
type MediaDescription struct {
	Enabled bool   `json:"enabled"`
	Codec   string `json:"codec_type,omitempty"`
	Bitrate int    `json:"bit_rate,omitempty"`
}

const (
	msgRegister  = "register"
	msgAccept    = "accept"
	msgReject    = "reject"
	msgOffer     = "offer"
	msgAnswer    = "answer"
	msgCandidate = "candidate"
	msgClose     = "close"
	msgBye       = "bye"
	msgPing      = "ping"
	msgPong      = "pong"
	msgError     = "error"
)

func errorMessage(reason string) *Message {
	return &Message{Type: msgError, Reason: reason}
}

func decodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

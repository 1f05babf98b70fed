package rmacs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// msgTypeCommand is the only msg_type value this protocol ever emits.
const msgTypeCommand = "COMMAND"

// wireIndent is the JSON indentation used when encoding outbound
// messages. Indentation is not bit-significant; receivers parse JSON.
const wireIndent = "  "

// ErrDecodeMalformed wraps any failure to parse a received frame as UTF-8
// JSON.
var ErrDecodeMalformed = errors.New("rmacs: malformed control message")

// ErrInvalidAction is returned when a decoded payload carries an a_id
// outside the four wire-stable action values.
var ErrInvalidAction = errors.New("rmacs: invalid action id")

// Payload is the typed body of a ControlMessage.
type Payload struct {
	ActionID  Action `json:"a_id"`
	MessageID string `json:"message_id"`
	Device    string `json:"device"`
	Freq      int    `json:"freq"`

	// Qual, TxRate, PhyError, TxTimeout are required for a_id in
	// {BadChannelQualityIndex, ChannelQualityReport} and omitted
	// otherwise.
	Qual      *int `json:"qual,omitempty"`
	TxRate    *int `json:"tx_rate,omitempty"`
	PhyError  *int `json:"phy_error,omitempty"`
	TxTimeout *int `json:"tx_timeout,omitempty"`
}

// ControlMessage is the complete wire envelope.
type ControlMessage struct {
	MsgType string  `json:"msg_type"`
	Payload Payload `json:"payload"`
}

// Frame is one decoded inbound ControlMessage together with the
// interface it arrived on, handed to the FSM drivers for dispatch and
// duplicate suppression.
type Frame struct {
	Message   ControlMessage
	Interface string
}

// NewMessageID generates a fresh UUIDv4 message_id. Every ControlMessage
// carries one; the same id is never emitted twice.
func NewMessageID() string {
	return uuid.New().String()
}

// intPtr is a small helper so callers can write intPtr(n) instead of
// taking the address of a local variable at every call site.
func intPtr(n int) *int {
	return &n
}

// NewQualityMessage builds a ControlMessage for ActionBadChannelQualityIndex
// or ActionChannelQualityReport, the two actions that carry quality,
// traffic-rate, and error-counter fields.
func NewQualityMessage(action Action, device string, freq, qual, txRate, phyError, txTimeout int) ControlMessage {
	return ControlMessage{
		MsgType: msgTypeCommand,
		Payload: Payload{
			ActionID:  action,
			MessageID: NewMessageID(),
			Device:    device,
			Freq:      freq,
			Qual:      intPtr(qual),
			TxRate:    intPtr(txRate),
			PhyError:  intPtr(phyError),
			TxTimeout: intPtr(txTimeout),
		},
	}
}

// NewFrequencyMessage builds a ControlMessage for ActionOperatingFrequency
// or ActionSwitchFrequency, the two actions that carry only a frequency.
func NewFrequencyMessage(action Action, device string, freq int) ControlMessage {
	return ControlMessage{
		MsgType: msgTypeCommand,
		Payload: Payload{
			ActionID:  action,
			MessageID: NewMessageID(),
			Device:    device,
			Freq:      freq,
		},
	}
}

// Encode serializes m as indented UTF-8 JSON.
func Encode(m ControlMessage) ([]byte, error) {
	buf, err := json.MarshalIndent(m, "", wireIndent)
	if err != nil {
		return nil, fmt.Errorf("rmacs: encode control message: %w", err)
	}
	return buf, nil
}

// Decode parses a received frame into a ControlMessage. Non-UTF-8 and
// non-JSON frames return ErrDecodeMalformed so the receive loop can log
// and continue without terminating.
func Decode(frame []byte) (ControlMessage, error) {
	if !utf8.Valid(frame) {
		return ControlMessage{}, fmt.Errorf("%w: not valid UTF-8", ErrDecodeMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(frame))
	var m ControlMessage
	if err := dec.Decode(&m); err != nil {
		return ControlMessage{}, fmt.Errorf("%w: %w", ErrDecodeMalformed, err)
	}

	if !m.Payload.ActionID.Valid() {
		return ControlMessage{}, fmt.Errorf("%w: %d", ErrInvalidAction, m.Payload.ActionID)
	}

	return m, nil
}

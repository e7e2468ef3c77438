package chat

import (
	"bytes"
	"chat-live/domain"
	"chat-live/errors"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// envelope is the raw inbound frame. Every field is optional at this level,
// presence is checked per event type.
type envelope struct {
	Type          EventType       `json:"type"`
	Status        *string         `json:"status"`
	StatusMessage *string         `json:"statusMessage"`
	RoomID        json.RawMessage `json:"roomId"`
	Content       *string         `json:"content"`
}

// parseRoomID accepts either a JSON integer or a string holding one.
func parseRoomID(data json.RawMessage) (domain.RoomID, error) {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: roomId is missing", errors.ErrMalformedFrame)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
		}
		raw = []byte(s)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: roomId: %v", errors.ErrMalformedFrame, err)
	}
	return domain.RoomID(id), nil
}

// Decoder turns text frames into commands.
// Frames that cannot be decoded are reported with errors.ErrMalformedFrame
// or errors.ErrUnknownEventType, callers are expected to drop them.
type Decoder struct {
	validate         *validator.Validate
	maxContentLength int
}

func NewDecoder(maxContentLength int) *Decoder {
	return &Decoder{validate: validator.New(), maxContentLength: maxContentLength}
}

func (d *Decoder) Decode(frame []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}

	var cmd Command
	switch env.Type {
	case TypeStatusUpdate:
		if env.Status == nil {
			return nil, fmt.Errorf("%w: status is missing", errors.ErrMalformedFrame)
		}
		cmd = StatusUpdateCommand{Status: domain.Status(*env.Status), StatusMessage: env.StatusMessage}
	case TypeJoinRoom:
		room, err := parseRoomID(env.RoomID)
		if err != nil {
			return nil, err
		}
		cmd = JoinRoomCommand{Room: room}
	case TypeLeaveRoom:
		room, err := parseRoomID(env.RoomID)
		if err != nil {
			return nil, err
		}
		cmd = LeaveRoomCommand{Room: room}
	case TypeMessage:
		room, err := parseRoomID(env.RoomID)
		if err != nil {
			return nil, err
		}
		if env.Content == nil {
			return nil, fmt.Errorf("%w: content is missing", errors.ErrMalformedFrame)
		}
		if d.maxContentLength > 0 && utf8.RuneCountInString(*env.Content) > d.maxContentLength {
			return nil, fmt.Errorf("%w: content exceeds %d characters", errors.ErrMalformedFrame, d.maxContentLength)
		}
		cmd = PostMessageCommand{Room: room, Content: *env.Content}
	case TypePing:
		return PingCommand{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEventType, env.Type)
	}

	if err := d.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	return cmd, nil
}

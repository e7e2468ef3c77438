package storage

import (
	"chat-live/domain"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in the protobuf wire format so that fields can be added
// without rewriting existing values. Unknown fields are skipped on read.

const (
	userFieldID            protowire.Number = 1
	userFieldName          protowire.Number = 2
	userFieldEmail         protowire.Number = 3
	userFieldPasswordHash  protowire.Number = 4
	userFieldRoles         protowire.Number = 5
	userFieldStatus        protowire.Number = 6
	userFieldStatusMessage protowire.Number = 7
	userFieldCreatedAt     protowire.Number = 8
	userFieldUpdatedAt     protowire.Number = 9
)

const (
	messageFieldID         protowire.Number = 1
	messageFieldRoom       protowire.Number = 2
	messageFieldSenderID   protowire.Number = 3
	messageFieldSenderName protowire.Number = 4
	messageFieldContent    protowire.Number = 5
	messageFieldCreatedAt  protowire.Number = 6
)

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendInt(b, num, t.UnixNano())
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendInt(b, userFieldID, int64(u.ID))
	b = appendString(b, userFieldName, u.Name)
	b = appendString(b, userFieldEmail, u.Email)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	for _, role := range u.Roles {
		b = protowire.AppendTag(b, userFieldRoles, protowire.BytesType)
		b = protowire.AppendString(b, role)
	}
	b = appendString(b, userFieldStatus, string(u.Status))
	b = appendString(b, userFieldStatusMessage, u.StatusMessage)
	b = appendTime(b, userFieldCreatedAt, u.CreatedAt)
	b = appendTime(b, userFieldUpdatedAt, u.UpdatedAt)
	return b
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendInt(b, messageFieldID, int64(m.ID))
	b = appendInt(b, messageFieldRoom, int64(m.Room))
	b = appendInt(b, messageFieldSenderID, int64(m.SenderID))
	b = appendString(b, messageFieldSenderName, m.SenderName)
	b = appendString(b, messageFieldContent, m.Content)
	b = appendTime(b, messageFieldCreatedAt, m.CreatedAt)
	return b
}

// field is one decoded key/value of a record
type field struct {
	num   protowire.Number
	int   int64
	bytes []byte
}

// decodeFields walks a record and hands every varint or bytes field to fn.
func decodeFields(b []byte, fn func(f field)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
			}
			fn(field{num: num, int: int64(v)})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
			}
			fn(field{num: num, bytes: v})
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("corrupted record: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func nanoTime(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

func decodeUser(b []byte) (domain.User, error) {
	var u domain.User
	err := decodeFields(b, func(f field) {
		switch f.num {
		case userFieldID:
			u.ID = domain.UserID(f.int)
		case userFieldName:
			u.Name = string(f.bytes)
		case userFieldEmail:
			u.Email = string(f.bytes)
		case userFieldPasswordHash:
			u.PasswordHash = string(f.bytes)
		case userFieldRoles:
			u.Roles = append(u.Roles, string(f.bytes))
		case userFieldStatus:
			u.Status = domain.Status(f.bytes)
		case userFieldStatusMessage:
			u.StatusMessage = string(f.bytes)
		case userFieldCreatedAt:
			u.CreatedAt = nanoTime(f.int)
		case userFieldUpdatedAt:
			u.UpdatedAt = nanoTime(f.int)
		}
	})
	return u, err
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := decodeFields(b, func(f field) {
		switch f.num {
		case messageFieldID:
			m.ID = domain.MessageID(f.int)
		case messageFieldRoom:
			m.Room = domain.RoomID(f.int)
		case messageFieldSenderID:
			m.SenderID = domain.UserID(f.int)
		case messageFieldSenderName:
			m.SenderName = string(f.bytes)
		case messageFieldContent:
			m.Content = string(f.bytes)
		case messageFieldCreatedAt:
			m.CreatedAt = nanoTime(f.int)
		}
	})
	return m, err
}

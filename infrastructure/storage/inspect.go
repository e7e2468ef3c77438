package storage

import (
	"chat-live/internal"
	"fmt"
	"strings"
	"time"
)

// MapRow decodes user and message records for the debug inspector and the
// inspect CLI. Other keys fall back to internal.DefaultMapper.
func MapRow(key string, val []byte) internal.InspectRow {
	switch {
	case strings.HasPrefix(key, messagePrefix):
		row := internal.DefaultMapper(key, val)
		msg, err := decodeMessage(val)
		if err != nil {
			row.Detail = "corrupted: " + err.Error()
			return row
		}
		row.Type = "MESSAGE"
		row.EntityID = fmt.Sprint(msg.ID)
		row.Timestamp = msg.CreatedAt.Format(time.RFC3339)
		row.Detail = fmt.Sprintf("%s (%d): %s", msg.SenderName, msg.SenderID, msg.Content)
		return row
	case strings.HasPrefix(key, userPrefix):
		row := internal.DefaultMapper(key, val)
		user, err := decodeUser(val)
		if err != nil {
			row.Detail = "corrupted: " + err.Error()
			return row
		}
		row.Type = "USER"
		row.EntityID = fmt.Sprint(user.ID)
		row.Namespace = user.Email
		row.Timestamp = user.UpdatedAt.Format(time.RFC3339)
		row.Detail = fmt.Sprintf("%s [%s] %s", user.Name, user.Status, user.StatusMessage)
		return row
	default:
		return internal.DefaultMapper(key, val)
	}
}

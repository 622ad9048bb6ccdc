package http

import (
	"encoding/json"
	"strings"

	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/proto"
)

// commandFromInbound maps a wire frame to a core command. Decode failures
// and unknown types map to CommandInvalid so the hub answers the sender
// with an error event instead of the transport writing to the socket.
func commandFromInbound(in proto.ClientCommand) core.Command {
	invalid := func(msg string) core.Command {
		return core.Command{
			Kind: core.CommandInvalid,
			Err:  &core.Error{Code: core.ErrCodeInvalidCommand, Message: msg},
		}
	}

	switch in.Type {
	case proto.TypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return invalid("malformed SendMessage payload")
		}
		if strings.TrimSpace(data.Content) == "" {
			return invalid("message content must not be empty")
		}
		return core.Command{Kind: core.CommandSendMessage, Text: data.Content, Nickname: data.Nickname}

	case proto.TypeSendRoomMessage:
		var data proto.SendRoomMessageData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return invalid("malformed SendRoomMessage payload")
		}
		if data.RoomID == "" || strings.TrimSpace(data.Content) == "" {
			return invalid("room id and content must not be empty")
		}
		return core.Command{Kind: core.CommandSendRoomMessage, Room: data.RoomID, Text: data.Content}

	case proto.TypeJoinRoom:
		var data proto.JoinRoomData
		if err := json.Unmarshal(in.Data, &data); err != nil || data.RoomID == "" {
			return invalid("malformed JoinRoom payload")
		}
		return core.Command{Kind: core.CommandJoinRoom, Room: data.RoomID}

	case proto.TypeLeaveRoom:
		var data proto.LeaveRoomData
		if err := json.Unmarshal(in.Data, &data); err != nil || data.RoomID == "" {
			return invalid("malformed LeaveRoom payload")
		}
		return core.Command{Kind: core.CommandLeaveRoom, Room: data.RoomID}

	case proto.TypeSetNickname:
		var data proto.SetNicknameData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return invalid("malformed SetNickname payload")
		}
		return core.Command{Kind: core.CommandSetNickname, Nickname: data.Nickname}

	case proto.TypePong:
		return core.Command{Kind: core.CommandPong}

	default:
		return invalid("unknown command type: " + in.Type)
	}
}

// outboundFromEvent maps a core event to its wire envelope.
func outboundFromEvent(ev *core.Event) proto.ServerEvent {
	switch ev.Kind {
	case core.EventConnected:
		return proto.ServerEvent{
			Event: proto.EventConnected,
			Data:  proto.ConnectedData{UserID: ev.User, Rooms: ev.Rooms},
		}
	case core.EventMessage:
		return proto.ServerEvent{Event: proto.EventMessage, Data: messageData(ev.Message)}
	case core.EventRoomMessage:
		return proto.ServerEvent{
			Event: proto.EventRoomMessage,
			Data:  proto.RoomMessageData{RoomID: ev.Room, Message: messageData(ev.Message)},
		}
	case core.EventUserJoined:
		return proto.ServerEvent{
			Event: proto.EventUserJoined,
			Data:  proto.PresenceData{UserID: ev.User, Nickname: ev.Nickname},
		}
	case core.EventUserLeft:
		return proto.ServerEvent{
			Event: proto.EventUserLeft,
			Data:  proto.PresenceData{UserID: ev.User, Nickname: ev.Nickname},
		}
	case core.EventUserJoinedRoom:
		return proto.ServerEvent{
			Event: proto.EventUserJoinedRoom,
			Data:  proto.RoomPresenceData{RoomID: ev.Room, UserID: ev.User},
		}
	case core.EventUserLeftRoom:
		return proto.ServerEvent{
			Event: proto.EventUserLeftRoom,
			Data:  proto.RoomPresenceData{RoomID: ev.Room, UserID: ev.User},
		}
	case core.EventPing:
		return proto.ServerEvent{Event: proto.EventPing}
	case core.EventPong:
		return proto.ServerEvent{Event: proto.EventPong}
	case core.EventError:
		data := proto.ErrorData{Message: "internal error"}
		if ev.Err != nil {
			data = proto.ErrorData{Code: ev.Err.Code, Message: ev.Err.Message, Retryable: ev.Err.Retryable}
		}
		return proto.ServerEvent{Event: proto.EventError, Data: data}
	default:
		return proto.ServerEvent{
			Event: proto.EventError,
			Data:  proto.ErrorData{Message: "unmapped event"},
		}
	}
}

func messageData(m core.Message) proto.MessageData {
	kind := proto.KindText
	switch m.Kind {
	case core.MessageNickChange:
		kind = proto.KindNickChange
	case core.MessageSystem:
		kind = proto.KindSystem
	}
	return proto.MessageData{
		ID:        m.ID,
		UserID:    m.From,
		Content:   m.Text,
		Nickname:  m.Nickname,
		Kind:      kind,
		OldNick:   m.OldNick,
		NewNick:   m.NewNick,
		CreatedAt: m.CreatedAt,
	}
}

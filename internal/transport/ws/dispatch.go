package ws

import (
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JvstinNgvyen/space-scrap/internal/game/session"
)

// Client-to-server message kinds.
const (
	msgCreateRoom    = "create-room"
	msgJoinRoom      = "join-room"
	msgReconnectRoom = "reconnect-room"
	msgObjectUpdate  = "object-update"
	msgSelectObject  = "select-object"
	msgPoseMode      = "pose-mode"
	msgEndTurn       = "end-turn"
	msgGetRoomInfo   = "get-room-info"
	msgLeaveRoom     = "leave-room"
	msgPing          = "ping"
)

type createRoomPayload struct {
	DisplayName string `json:"displayName"`
}

type joinRoomPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type reconnectPayload struct {
	RoomID    string `json:"roomId"`
	SlotLabel string `json:"slotLabel"`
}

type objectUpdatePayload struct {
	RoomID    string          `json:"roomId"`
	ObjectID  string          `json:"objectId"`
	Transform json.RawMessage `json:"transform"`
}

type selectObjectPayload struct {
	RoomID   string `json:"roomId"`
	ObjectID string `json:"objectId"`
}

type poseModePayload struct {
	RoomID   string `json:"roomId"`
	ObjectID string `json:"objectId"`
	Active   bool   `json:"active"`
}

type roomRefPayload struct {
	RoomID string `json:"roomId"`
}

// dispatch decodes one inbound frame and routes it to the coordinator.
// Operation failures come back as error{message} to this connection only;
// malformed frames are answered the same way.
func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError(errors.New("malformed message"))
		return
	}

	var err error
	switch env.Type {
	case msgCreateRoom:
		var p createRoomPayload
		if err = decode(env.Payload, &p); err == nil {
			err = c.coord.CreateRoom(c, cleanName(p.DisplayName))
		}
	case msgJoinRoom:
		var p joinRoomPayload
		if err = decode(env.Payload, &p); err == nil {
			err = c.coord.JoinRoom(c, p.RoomID, cleanName(p.DisplayName))
		}
	case msgReconnectRoom:
		var p reconnectPayload
		if err = decode(env.Payload, &p); err == nil {
			err = c.coord.Reconnect(c, p.RoomID, p.SlotLabel)
		}
	case msgObjectUpdate:
		var p objectUpdatePayload
		if err = decode(env.Payload, &p); err == nil {
			if p.ObjectID == "" {
				err = errors.New("objectId required")
			} else {
				err = c.coord.ApplyObjectUpdate(c, p.RoomID, p.ObjectID, p.Transform)
			}
		}
	case msgSelectObject:
		var p selectObjectPayload
		if err = decode(env.Payload, &p); err == nil {
			err = c.coord.RelaySelectObject(c, p.RoomID, p.ObjectID)
		}
	case msgPoseMode:
		var p poseModePayload
		if err = decode(env.Payload, &p); err == nil {
			err = c.coord.RelayPoseMode(c, p.RoomID, p.ObjectID, p.Active)
		}
	case msgEndTurn:
		var p roomRefPayload
		if err = decode(env.Payload, &p); err == nil {
			err = c.coord.EndTurn(c, p.RoomID)
		}
	case msgGetRoomInfo:
		var p roomRefPayload
		if err = decode(env.Payload, &p); err == nil {
			var info session.RoomInfoPayload
			if info, err = c.coord.RoomInfo(p.RoomID); err == nil {
				err = c.Send(session.MsgRoomInfo, info)
			}
		}
	case msgLeaveRoom:
		err = c.coord.LeaveRoom(c)
	case msgPing:
		err = c.Send(session.MsgPong, struct{}{})
	default:
		c.logger.Debug("unknown message type", zap.String("msg_type", env.Type))
		err = errors.New("unknown message type")
	}

	if err != nil {
		c.sendError(err)
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("malformed payload")
	}
	return nil
}

// cleanName trims a display name and substitutes a placeholder for an
// empty one. Names are otherwise free-form.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Anonymous"
	}
	return name
}

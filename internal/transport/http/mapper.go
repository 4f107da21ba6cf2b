package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-minutes/internal/core"
	"github.com/vovakirdan/wirechat-minutes/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := decodeData(inbound.Data, &join); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid join payload"}
		}
		return &core.Command{
			Kind:  core.CommandJoin,
			Room:  join.Room,
			Name:  join.User.Name,
			Email: join.User.Email,
		}, nil
	case proto.InboundTypeSignal, proto.InboundTypeICECandidate:
		var sig proto.SignalData
		if err := decodeData(inbound.Data, &sig); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid signal payload"}
		}
		if sig.To == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "to is required"}
		}
		return &core.Command{
			Kind:    core.CommandSignal,
			To:      sig.To,
			Payload: sig.Payload,
		}, nil
	case proto.InboundTypeLeave:
		return &core.Command{Kind: core.CommandLeave}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventWelcome:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventWelcome,
			Data:  proto.EventWelcomeData{ID: event.ConnID},
		}
	case core.EventMemberArrived:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMemberArrived,
			Data: proto.EventMemberArrivedData{
				Room: event.Room,
				ID:   event.ConnID,
				Name: event.Name,
			},
		}
	case core.EventMemberLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMemberLeft,
			Data: proto.EventMemberLeftData{
				Room: event.Room,
				ID:   event.ConnID,
			},
		}
	case core.EventSignal:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSignal,
			Data: proto.EventSignalData{
				From:    event.ConnID,
				Payload: event.Payload,
			},
		}
	case core.EventReadyToStream:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReadyToStream,
			Data:  proto.EventReadyToStreamData{},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown event"}}
	}
}

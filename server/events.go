package server

import (
	"context"
	"encoding/json"
	"strconv"

	"dimfilter/server/fastview"

	"github.com/ONSdigital/log.go/v2/log"
	"github.com/pkg/errors"
)

// Types of the user events a page sends over its websocket.
const (
	EventSelect = "select"
	EventToggle = "toggle"
	EventEdit   = "edit"
	EventAddRow = "addRow"
)

// UserEvent is a user interaction reported by a page.
type UserEvent struct {
	Type         string `json:"type"`
	RowKey       string `json:"rowKey,omitempty"`
	DimensionKey string `json:"dimensionKey,omitempty"`
	MemberID     string `json:"memberId,omitempty"`
	Row          int    `json:"row,omitempty"`
	MeasureKey   string `json:"measureKey,omitempty"`
	Value        string `json:"value,omitempty"`
}

// ErrUnknownEvent is returned for events of a type the widget does not handle.
var ErrUnknownEvent = errors.New("unknown user event")

// onMessage decodes page messages into user events and dispatches them. Rejected events are
// logged only: the page reverts to whatever plan follows.
func (s *Server) onMessage(ctx context.Context) fastview.MessageHandler {
	return func(msg []byte) {
		var ev UserEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Warn(ctx, "malformed user event", log.Data{"error": err.Error()})
			return
		}
		if err := s.dispatch(ev); err != nil {
			log.Warn(ctx, "user event rejected", log.Data{"type": ev.Type, "error": err.Error()})
		}
	}
}

func (s *Server) dispatch(ev UserEvent) error {
	switch ev.Type {
	case EventSelect:
		return s.controller.OnDimensionSelect(ev.RowKey, ev.DimensionKey, ev.MemberID)
	case EventToggle:
		_, err := s.controller.ToggleRowSelection(ev.Row)
		return err
	case EventEdit:
		return s.controller.OnUserEdit(ev.Row, ev.MeasureKey, ev.Value)
	case EventAddRow:
		_, err := s.controller.AddEmptyRow()
		return err
	}
	return errors.Wrap(ErrUnknownEvent, strconv.Quote(ev.Type))
}

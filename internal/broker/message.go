// Package broker routes note mutations either straight to the document store or, when the local
// actor lacks write permission, through the privileged relay peer over the message channel.
// broker 负责笔记变更的直写或中继
package broker

import (
	"bytes"
	"context"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/haierkeys/evidence-board-service/internal/domain"
)

// Action wire name of a message variant
type Action string

const (
	ActionUpdate          Action = "updateDrawing"
	ActionCreate          Action = "createDrawing"
	ActionDelete          Action = "deleteDrawing"
	ActionPlayAudio       Action = "playAudio"
	ActionStopAudio       Action = "stopAudio"
	ActionDocumentChanged Action = "documentChanged"
)

var (
	// ErrUnknownAction 未知消息类型
	ErrUnknownAction = errors.New("unknown message action")
	// ErrMalformedFrame 消息格式错误
	ErrMalformedFrame = errors.New("malformed message frame")
)

// Message is one of the variants below. The set is closed: the unexported marker keeps other
// packages from adding variants that Dispatch would not know.
type Message interface {
	Action() Action
	message()
}

// UpdateRequest relayed partial update of a note
type UpdateRequest struct {
	SceneID         string         `json:"sceneId" validate:"required"`
	NoteID          string         `json:"noteId" validate:"required"`
	Changes         domain.Changes `json:"changes"`
	RequestingActor string         `json:"requestingActor" validate:"required"`
	TraceID         string         `json:"traceId,omitempty"`
}

// CreateRequest relayed note creation
type CreateRequest struct {
	SceneID         string               `json:"sceneId" validate:"required"`
	Note            domain.Note          `json:"note"`
	Options         domain.CreateOptions `json:"options"`
	RequestingActor string               `json:"requestingActor" validate:"required"`
	TraceID         string               `json:"traceId,omitempty"`
}

// DeleteRequest relayed note deletion
type DeleteRequest struct {
	SceneID         string `json:"sceneId" validate:"required"`
	NoteID          string `json:"noteId" validate:"required"`
	RequestingActor string `json:"requestingActor" validate:"required"`
	TraceID         string `json:"traceId,omitempty"`
}

// PlayAudio 全局播放音频，无持久化状态
type PlayAudio struct {
	AudioPath   string `json:"audioPath" validate:"required"`
	ApplyEffect bool   `json:"applyEffect"`
}

// StopAudio 全局停止音频
type StopAudio struct {
	AudioPath string `json:"audioPath" validate:"required"`
}

// DocumentChanged store commit fanned out to remote peers
type DocumentChanged struct {
	Event domain.ChangeEvent `json:"event"`
}

func (*UpdateRequest) Action() Action   { return ActionUpdate }
func (*CreateRequest) Action() Action   { return ActionCreate }
func (*DeleteRequest) Action() Action   { return ActionDelete }
func (*PlayAudio) Action() Action       { return ActionPlayAudio }
func (*StopAudio) Action() Action       { return ActionStopAudio }
func (*DocumentChanged) Action() Action { return ActionDocumentChanged }

func (*UpdateRequest) message()   {}
func (*CreateRequest) message()   {}
func (*DeleteRequest) message()   {}
func (*PlayAudio) message()       {}
func (*StopAudio) message()       {}
func (*DocumentChanged) message() {}

var decoders = map[Action]func() Message{
	ActionUpdate:          func() Message { return &UpdateRequest{} },
	ActionCreate:          func() Message { return &CreateRequest{} },
	ActionDelete:          func() Message { return &DeleteRequest{} },
	ActionPlayAudio:       func() Message { return &PlayAudio{} },
	ActionStopAudio:       func() Message { return &StopAudio{} },
	ActionDocumentChanged: func() Message { return &DocumentChanged{} },
}

// Encode 编码为 "action|json" 帧
func Encode(m Message) ([]byte, error) {
	body, err := sonic.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", m.Action())
	}
	frame := make([]byte, 0, len(m.Action())+1+len(body))
	frame = append(frame, m.Action()...)
	frame = append(frame, '|')
	return append(frame, body...), nil
}

// Decode 解析 "action|json" 帧
func Decode(frame []byte) (Message, error) {
	i := bytes.IndexByte(frame, '|')
	if i <= 0 {
		return nil, ErrMalformedFrame
	}
	action := Action(frame[:i])
	newMsg, ok := decoders[action]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAction, "%q", action)
	}
	m := newMsg()
	if err := sonic.Unmarshal(frame[i+1:], m); err != nil {
		return nil, errors.Wrapf(err, "decode %s", action)
	}
	return m, nil
}

// Handler one method per message variant
type Handler interface {
	HandleUpdate(ctx context.Context, m *UpdateRequest) error
	HandleCreate(ctx context.Context, m *CreateRequest) error
	HandleDelete(ctx context.Context, m *DeleteRequest) error
	HandlePlayAudio(ctx context.Context, m *PlayAudio) error
	HandleStopAudio(ctx context.Context, m *StopAudio) error
	HandleDocumentChanged(ctx context.Context, m *DocumentChanged) error
}

// Dispatch routes m to the matching Handler method
func Dispatch(ctx context.Context, h Handler, m Message) error {
	switch m := m.(type) {
	case *UpdateRequest:
		return h.HandleUpdate(ctx, m)
	case *CreateRequest:
		return h.HandleCreate(ctx, m)
	case *DeleteRequest:
		return h.HandleDelete(ctx, m)
	case *PlayAudio:
		return h.HandlePlayAudio(ctx, m)
	case *StopAudio:
		return h.HandleStopAudio(ctx, m)
	case *DocumentChanged:
		return h.HandleDocumentChanged(ctx, m)
	}
	return ErrUnknownAction
}

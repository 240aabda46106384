package broker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

func TestEncode_Framing(t *testing.T) {
	frame, err := Encode(&UpdateRequest{
		SceneID:         "s1",
		NoteID:          "n1",
		Changes:         domain.MoveTo(yarn.Point{X: 1, Y: 2}),
		RequestingActor: "u1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(frame), "updateDrawing|{"))

	m, err := Decode(frame)
	require.NoError(t, err)
	req, ok := m.(*UpdateRequest)
	require.True(t, ok)
	assert.Equal(t, "n1", req.NoteID)
	require.NotNil(t, req.Changes.Position)
	assert.Equal(t, yarn.Point{X: 1, Y: 2}, *req.Changes.Position)
	assert.Nil(t, req.Changes.Text)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("no separator"))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte("|{}"))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Decode([]byte("renameDrawing|{}"))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = Decode([]byte("playAudio|{not json"))
	assert.Error(t, err)
}

func TestDecode_CreateKeepsConnections(t *testing.T) {
	frame, err := Encode(&CreateRequest{
		SceneID: "s1",
		Note: domain.Note{
			SceneID:     "s1",
			Kind:        domain.KindPhoto,
			Connections: []domain.Connection{{TargetID: "b", Color: "#00ff00", Width: 7}},
		},
		Options:         domain.CreateOptions{SkipAutoOpen: true},
		RequestingActor: "u2",
	})
	require.NoError(t, err)

	m, err := Decode(frame)
	require.NoError(t, err)
	req := m.(*CreateRequest)
	assert.Equal(t, domain.KindPhoto, req.Note.Kind)
	assert.Equal(t, []domain.Connection{{TargetID: "b", Color: "#00ff00", Width: 7}}, req.Note.Connections)
	assert.True(t, req.Options.SkipAutoOpen)
}

type recordingHandler struct {
	seen []Action
}

func (h *recordingHandler) HandleUpdate(context.Context, *UpdateRequest) error {
	h.seen = append(h.seen, ActionUpdate)
	return nil
}
func (h *recordingHandler) HandleCreate(context.Context, *CreateRequest) error {
	h.seen = append(h.seen, ActionCreate)
	return nil
}
func (h *recordingHandler) HandleDelete(context.Context, *DeleteRequest) error {
	h.seen = append(h.seen, ActionDelete)
	return nil
}
func (h *recordingHandler) HandlePlayAudio(context.Context, *PlayAudio) error {
	h.seen = append(h.seen, ActionPlayAudio)
	return nil
}
func (h *recordingHandler) HandleStopAudio(context.Context, *StopAudio) error {
	h.seen = append(h.seen, ActionStopAudio)
	return nil
}
func (h *recordingHandler) HandleDocumentChanged(context.Context, *DocumentChanged) error {
	h.seen = append(h.seen, ActionDocumentChanged)
	return nil
}

func TestDispatch_OneHandlerPerVariant(t *testing.T) {
	h := &recordingHandler{}
	msgs := []Message{
		&UpdateRequest{}, &CreateRequest{}, &DeleteRequest{},
		&PlayAudio{}, &StopAudio{}, &DocumentChanged{},
	}
	for _, m := range msgs {
		require.NoError(t, Dispatch(context.Background(), h, m))
	}
	assert.Equal(t, []Action{
		ActionUpdate, ActionCreate, ActionDelete,
		ActionPlayAudio, ActionStopAudio, ActionDocumentChanged,
	}, h.seen)
	assert.ErrorIs(t, Dispatch(context.Background(), h, nil), ErrUnknownAction)
}

func TestLocalBus_DoesNotEchoToSender(t *testing.T) {
	bus := NewLocalBus(nil)
	a, b, c := bus.Endpoint(), bus.Endpoint(), bus.Endpoint()

	var gotA, gotB, gotC []Message
	a.On(func(m Message) { gotA = append(gotA, m) })
	cancelB := b.On(func(m Message) { gotB = append(gotB, m) })
	c.On(func(m Message) { gotC = append(gotC, m) })

	require.NoError(t, a.Emit(context.Background(), &StopAudio{AudioPath: "x.ogg"}))
	assert.Empty(t, gotA)
	assert.Len(t, gotB, 1)
	assert.Len(t, gotC, 1)
	assert.Equal(t, "x.ogg", gotB[0].(*StopAudio).AudioPath)
	assert.NotSame(t, gotB[0], gotC[0])

	cancelB()
	require.NoError(t, a.Emit(context.Background(), &StopAudio{AudioPath: "y.ogg"}))
	assert.Len(t, gotB, 1)
	assert.Len(t, gotC, 2)

	bus.Close()
	assert.ErrorIs(t, a.Emit(context.Background(), &StopAudio{AudioPath: "z.ogg"}), ErrChannelUnavailable)
}

type fakeTransport struct {
	sent    [][]byte
	handler func([]byte)
	err     error
}

func (f *fakeTransport) Send(frame []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) OnFrame(fn func([]byte)) func() {
	f.handler = fn
	return func() { f.handler = nil }
}

func TestFrameChannel(t *testing.T) {
	tr := &fakeTransport{}
	ch := NewFrameChannel(tr, nil)

	var got []Message
	ch.On(func(m Message) { got = append(got, m) })

	require.NoError(t, ch.Emit(context.Background(), &PlayAudio{AudioPath: "a.ogg", ApplyEffect: true}))
	require.Len(t, tr.sent, 1)
	assert.True(t, strings.HasPrefix(string(tr.sent[0]), "playAudio|"))

	tr.handler([]byte("garbage"))
	tr.handler(tr.sent[0])
	require.Len(t, got, 1)
	assert.True(t, got[0].(*PlayAudio).ApplyEffect)

	tr.err = assert.AnError
	assert.ErrorIs(t, ch.Emit(context.Background(), &StopAudio{AudioPath: "a.ogg"}), ErrChannelUnavailable)

	assert.ErrorIs(t, NewFrameChannel(nil, nil).Emit(context.Background(), &StopAudio{}), ErrChannelUnavailable)
}

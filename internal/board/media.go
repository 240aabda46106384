package board

import (
	"context"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/code"
)

// PlayMedia plays a media note's recording for every connected player
func (s *Session) PlayMedia(ctx context.Context, id string, applyEffect bool) (bool, error) {
	n, err := s.note(id)
	if err != nil {
		return false, err
	}
	if n.Kind != domain.KindMedia || n.AudioPath == "" {
		return false, s.fail(code.ErrorInvalidParams.WithDetails("note has no recording"))
	}
	if s.audio.Playing(n.AudioPath) {
		s.notifier.Notify(code.WarnAudioPlaying)
		return false, nil
	}
	if err := s.broker.BroadcastPlay(ctx, n.AudioPath, applyEffect); err != nil {
		return false, s.fail(err)
	}
	return true, nil
}

// StopMedia stops the recording everywhere
func (s *Session) StopMedia(ctx context.Context, id string) error {
	n, err := s.note(id)
	if err != nil {
		return err
	}
	if n.AudioPath == "" {
		return nil
	}
	if err := s.broker.BroadcastStop(ctx, n.AudioPath); err != nil {
		return s.fail(err)
	}
	return nil
}

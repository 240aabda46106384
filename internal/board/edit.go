package board

import (
	"context"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

func (s *Session) note(id string) (*domain.Note, error) {
	n := s.Graph().Get(id)
	if n == nil {
		return nil, s.fail(domain.ErrNoteNotFound)
	}
	return n, nil
}

func (s *Session) confirmed(ctx context.Context, title, message string) bool {
	if s.confirm != nil && s.confirm(ctx, title, message) {
		return true
	}
	s.notifier.Notify(code.WarnActionCancelled)
	return false
}

// UpdateNote applies an edit from the note form. Connections to notes that no longer exist are
// dropped along with the edit.
func (s *Session) UpdateNote(ctx context.Context, id string, changes domain.Changes) (broker.Route, error) {
	n, err := s.note(id)
	if err != nil {
		return broker.RouteNone, err
	}
	if changes.Connections == nil {
		if pruned, stale := s.Graph().PruneStale(n); stale {
			changes.Connections = &pruned
		}
	}
	if changes.Empty() {
		return broker.RouteNone, nil
	}
	route, err := s.broker.ApplyUpdate(ctx, id, changes)
	if err != nil {
		return route, s.fail(err)
	}
	return route, nil
}

// MoveNote moves the note unless it is locked for move
func (s *Session) MoveNote(ctx context.Context, id string, p yarn.Point) (broker.Route, error) {
	n, err := s.note(id)
	if err != nil {
		return broker.RouteNone, err
	}
	if n.LockedForMove {
		return broker.RouteNone, s.fail(domain.ErrNoteLocked)
	}
	route, err := s.broker.ApplyUpdate(ctx, id, domain.MoveTo(p))
	if err != nil {
		return route, s.fail(err)
	}
	return route, nil
}

// RemoveConnections drops the outgoing connections of sourceID at the given indices
func (s *Session) RemoveConnections(ctx context.Context, sourceID string, indices ...int) (broker.Route, error) {
	n, err := s.note(sourceID)
	if err != nil {
		return broker.RouteNone, err
	}
	next := domain.RemoveConnections(n.Connections, indices...)
	if len(next) == len(n.Connections) {
		return broker.RouteNone, nil
	}
	route, err := s.broker.ApplyUpdate(ctx, sourceID, domain.SetConnections(next))
	if err != nil {
		return route, s.fail(err)
	}
	s.comp.RedrawAll(0)
	s.notifier.Notify(code.SuccessDisconnect)
	return route, nil
}

// RemoveAllConnections clears every connection into and out of id after confirmation.
// Returns the number of notes changed.
func (s *Session) RemoveAllConnections(ctx context.Context, id string) (int, error) {
	if _, err := s.note(id); err != nil {
		return 0, err
	}
	strips := s.Graph().DetachAll(id)
	if len(strips) == 0 {
		s.notifier.Notify(code.WarnNoConnections)
		return 0, nil
	}
	if !s.confirmed(ctx, "Remove All Connections",
		"Are you sure you want to remove ALL yarn connections connected to this note (incoming and outgoing)?") {
		return 0, nil
	}

	changed := 0
	for _, st := range strips {
		if _, err := s.broker.ApplyUpdate(ctx, st.SourceID, domain.SetConnections(st.Connections)); err != nil {
			s.logger.Warn("remove connections failed", zap.String(logger.FieldNoteID, st.SourceID), zap.Error(err))
			return changed, s.fail(err)
		}
		changed++
	}
	s.comp.RedrawAll(0)
	s.notifier.Notify(code.SuccessDisconnect)
	return changed, nil
}

// DeleteNote deletes id after confirmation; connections pointing at it are stripped by whichever
// process executes the delete
func (s *Session) DeleteNote(ctx context.Context, id string) (broker.Route, error) {
	if _, err := s.note(id); err != nil {
		return broker.RouteNone, err
	}
	if !s.confirmed(ctx, "Delete Note", "Are you sure you want to delete this note?") {
		return broker.RouteNone, nil
	}
	route, err := s.broker.ApplyDelete(ctx, id)
	if err != nil {
		return route, s.fail(err)
	}
	s.notifier.Notify(code.SuccessDeleted)
	return route, nil
}

// LinkObject links ref to the topmost note under p, as when a document is dropped on a note.
// Returns the linked note id, "" when p is over no note.
func (s *Session) LinkObject(ctx context.Context, p yarn.Point, ref Ref) (string, error) {
	if !s.BoardMode() {
		return "", nil
	}
	notes := s.Graph().All()
	for i := len(notes) - 1; i >= 0; i-- {
		x, y, w, h := notes[i].Bounds()
		if p.X < x || p.X > x+w || p.Y < y || p.Y > y+h {
			continue
		}
		id := notes[i].ID
		if _, err := s.broker.ApplyUpdate(ctx, id, domain.Changes{LinkedObject: domain.Ptr(ref.Link())}); err != nil {
			return "", s.fail(err)
		}
		s.notifier.Notify(code.SuccessLinked)
		return id, nil
	}
	return "", nil
}

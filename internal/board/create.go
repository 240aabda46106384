package board

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

// RefType kind of document a note can be made from
type RefType string

const (
	RefActor RefType = "Actor"
	RefScene RefType = "Scene"
	RefPage  RefType = "JournalEntryPage"
	RefSound RefType = "PlaylistSound"
)

// Ref a document living outside the board that a note links to
type Ref struct {
	Type RefType `json:"type" validate:"required"`
	UUID string  `json:"uuid" validate:"required"`
	Name string  `json:"name"`
	// Image portrait, scene background or page image
	Image string `json:"image,omitempty"`
	// AudioPath sound file of a playlist sound
	AudioPath string `json:"audioPath,omitempty"`
	// Unknown hides an actor's name behind "Unknown"
	Unknown bool `json:"unknown,omitempty"`
}

// Link the linked-object markup stored on the note
func (r Ref) Link() string {
	if r.Name == "" {
		return fmt.Sprintf("@UUID[%s]", r.UUID)
	}
	return fmt.Sprintf("@UUID[%s]{%s}", r.UUID, r.Name)
}

func (s *Session) placeholder() string {
	return path.Join(s.defaults.AssetDir, "placeholder.webp")
}

func (s *Session) create(ctx context.Context, n *domain.Note, opts domain.CreateOptions) (*domain.Document, broker.Route, error) {
	n.SceneID = s.sceneID
	doc, route, err := s.broker.ApplyCreate(ctx, n, opts)
	if err != nil {
		return nil, route, s.fail(err)
	}
	s.logger.Info("note created", zap.String(logger.FieldKind, string(n.Kind)), zap.String("route", string(route)))
	return doc, route, nil
}

// CreateNote creates a default note of kind centred in the view. A relayed create returns a nil
// document; the note appears once the relay has stored it.
func (s *Session) CreateNote(ctx context.Context, kind domain.Kind) (*domain.Document, broker.Route, error) {
	if !kind.Valid() {
		return nil, broker.RouteNone, s.fail(code.ErrorInvalidParams.WithDetails("kind " + string(kind)))
	}
	n := domain.NewNoteAtViewCenter(kind, s.host.ViewCenter(), s.defaults)
	if kind == domain.KindMedia {
		n.ImagePath = s.cassette()
	}
	return s.create(ctx, n, domain.CreateOptions{})
}

func (s *Session) cassette() string {
	if s.assets == nil {
		return s.defaults.CassetteImage
	}
	return s.assets.PickCassette(strconv.FormatInt(time.Now().UnixNano(), 36))
}

// PromoteDocument pins an outside document to the board as the note kind that fits it
func (s *Session) PromoteDocument(ctx context.Context, ref Ref) (*domain.Document, broker.Route, error) {
	switch ref.Type {
	case RefActor:
		return s.CreatePhotoFromActor(ctx, ref)
	case RefScene:
		return s.CreatePhotoFromScene(ctx, ref)
	case RefPage:
		return s.CreateHandoutFromPage(ctx, ref)
	case RefSound:
		return s.CreateMediaFromSound(ctx, ref)
	}
	return nil, broker.RouteNone, s.fail(domain.ErrNotManaged)
}

// CreatePhotoFromActor photo note showing an actor's portrait and name
func (s *Session) CreatePhotoFromActor(ctx context.Context, actor Ref) (*domain.Document, broker.Route, error) {
	name := actor.Name
	if name == "" {
		name = "Unknown"
	}
	n := domain.NewNoteAtViewCenter(domain.KindPhoto, s.host.ViewCenter(), s.defaults)
	if actor.Unknown {
		name = "Unknown"
		n.Unknown = true
	}
	n.Text = name
	n.ImagePath = actor.Image
	if n.ImagePath == "" {
		n.ImagePath = s.placeholder()
	}
	n.LinkedObject = Ref{UUID: actor.UUID, Name: name}.Link()
	return s.create(ctx, n, domain.CreateOptions{SkipAutoOpen: true})
}

// CreatePhotoFromScene photo note of a location
func (s *Session) CreatePhotoFromScene(ctx context.Context, place Ref) (*domain.Document, broker.Route, error) {
	name := place.Name
	if name == "" {
		name = "Unknown Location"
	}
	n := domain.NewNoteAtViewCenter(domain.KindPhoto, s.host.ViewCenter(), s.defaults)
	n.Text = name
	n.ImagePath = place.Image
	if n.ImagePath == "" {
		n.ImagePath = s.placeholder()
	}
	if s.defaults.Theme == domain.ThemeFuturistic {
		n.IdentityName = name
	}
	n.LinkedObject = Ref{UUID: place.UUID, Name: name}.Link()
	return s.create(ctx, n, domain.CreateOptions{SkipAutoOpen: true})
}

// CreateHandoutFromPage handout note sized to the page image, capped at 2000x1000
func (s *Session) CreateHandoutFromPage(ctx context.Context, page Ref) (*domain.Document, broker.Route, error) {
	n := domain.NewNoteAtViewCenter(domain.KindHandout, s.host.ViewCenter(), s.defaults)
	if page.Image != "" {
		n.ImagePath = page.Image
	}
	if s.assets != nil {
		w, h, err := s.assets.NaturalSize(ctx, n.ImagePath)
		if err != nil {
			s.logger.Warn("handout image size unavailable", zap.String(logger.FieldPath, n.ImagePath), zap.Error(err))
		} else {
			n.Size = domain.CapNaturalSize(float64(w), float64(h))
		}
	}
	n.Text = ""
	n.LinkedObject = page.Link()
	return s.create(ctx, n, domain.CreateOptions{SkipAutoOpen: true})
}

// CreateMediaFromSound cassette note that plays the sound
func (s *Session) CreateMediaFromSound(ctx context.Context, sound Ref) (*domain.Document, broker.Route, error) {
	n := domain.NewNoteAtViewCenter(domain.KindMedia, s.host.ViewCenter(), s.defaults)
	n.Text = sound.Name
	n.ImagePath = s.cassette()
	n.AudioPath = sound.AudioPath
	n.LinkedObject = sound.Link()
	return s.create(ctx, n, domain.CreateOptions{SkipAutoOpen: true})
}

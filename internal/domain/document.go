package domain

import (
	"context"
	"time"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Permission document permission level
type Permission int

const (
	PermissionNone Permission = iota
	PermissionLimited
	PermissionObserver
	PermissionOwner
)

// Role actor role; only the game master is privileged
type Role int

const (
	RolePlayer Role = iota + 1
	RoleTrusted
	RoleAssistant
	RoleGamemaster
)

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleTrusted:
		return "trusted"
	case RoleAssistant:
		return "assistant"
	case RoleGamemaster:
		return "gamemaster"
	}
	return "unknown"
}

// ParseRole parses the role name; unknown names are players
func ParseRole(s string) Role {
	switch s {
	case "trusted":
		return RoleTrusted
	case "assistant":
		return RoleAssistant
	case "gamemaster", "gm":
		return RoleGamemaster
	}
	return RolePlayer
}

// Actor 操作者
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
	Role  Role   `json:"role"`
}

// Privileged reports whether the actor is the relay-capable peer
func (a Actor) Privileged() bool {
	return a.Role == RoleGamemaster
}

// Flags the document's flag bag as the store keeps it. Read it only through LoadNote.
type Flags map[string]any

// Document 存储中的文档
type Document struct {
	ID                string     `json:"id"`
	SceneID           string     `json:"sceneId"`
	OwnerID           string     `json:"ownerId,omitempty"`
	DefaultPermission Permission `json:"defaultPermission"`

	Position yarn.Point `json:"position"`
	Size     Size       `json:"size"`
	Locked   bool       `json:"locked,omitempty"`

	Flags Flags `json:"flags"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateOptions options forwarded with a create, through the relay if needed
type CreateOptions struct {
	// RequestingActor is the actor that asked for the create, which differs from the executing actor when relayed
	RequestingActor string `json:"requestingActor,omitempty"`
	// SkipAutoOpen suppresses opening the editor for the new note
	SkipAutoOpen bool `json:"skipAutoOpen,omitempty"`
}

// ChangeKind 变更类型
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent store commit notification
// ChangeEvent 存储提交后的变更通知
type ChangeEvent struct {
	Kind     ChangeKind    `json:"kind"`
	Document Document      `json:"document"`
	Changes  *Changes      `json:"changes,omitempty"`
	ActorID  string        `json:"actorId"`
	Options  CreateOptions `json:"options"`
}

// DocumentStore 外部文档存储契约
type DocumentStore interface {
	// Get returns ErrNoteNotFound when id does not exist
	Get(ctx context.Context, id string) (*Document, error)
	// List all documents of a scene
	List(ctx context.Context, sceneID string) ([]*Document, error)
	// Create assigns the id when doc.ID is empty
	Create(ctx context.Context, doc *Document, actorID string, opts CreateOptions) (*Document, error)
	// Update merges changes into the document
	Update(ctx context.Context, id string, changes Changes, actorID string) (*Document, error)
	// Delete removes the document
	Delete(ctx context.Context, id string, actorID string) error
	// Scenes lists known scene ids
	Scenes(ctx context.Context) ([]string, error)

	// CanModify reports whether actor may update or delete doc directly
	CanModify(actor Actor, doc *Document) bool
	// CanCreate reports whether actor may create documents in the scene directly
	CanCreate(actor Actor, sceneID string) bool

	// Subscribe registers fn for every committed change; per document, events arrive in commit order
	Subscribe(fn func(ChangeEvent)) (unsubscribe func())
}

// DefaultCanModify the permission rule shared by store implementations
func DefaultCanModify(actor Actor, doc *Document) bool {
	if doc == nil {
		return false
	}
	return actor.Privileged() || (actor.ID != "" && doc.OwnerID == actor.ID) || doc.DefaultPermission >= PermissionOwner
}

// DefaultCanCreate trusted players and above may create drawings
func DefaultCanCreate(actor Actor, _ string) bool {
	return actor.Role >= RoleTrusted
}

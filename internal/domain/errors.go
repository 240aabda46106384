package domain

import "errors"

var (
	// ErrNoteNotFound 笔记不存在
	ErrNoteNotFound = errors.New("note not found")
	// ErrSceneNotFound 场景不存在
	ErrSceneNotFound = errors.New("scene not found")
	// ErrSelfConnection 不能连接到自身
	ErrSelfConnection = errors.New("cannot connect a note to itself")
	// ErrInvalidConnection 连线目标为空
	ErrInvalidConnection = errors.New("connection target is empty")
	// ErrNotManaged 文档不是证据板笔记
	ErrNotManaged = errors.New("document is not a board note")
	// ErrNoteLocked 笔记已锁定
	ErrNoteLocked = errors.New("note is locked for move")
	// ErrPermissionDenied 无权限
	ErrPermissionDenied = errors.New("permission denied")
)

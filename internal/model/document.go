// Package model 定义数据模型
package model

import (
	"time"

	"gorm.io/gorm"
)

const TableNameDocument = "document"

// Document mapped from table <document>
// Flags holds the note flag bag as JSON text.
type Document struct {
	ID                string    `gorm:"column:id;primaryKey;size:26" json:"id"`
	SceneID           string    `gorm:"column:scene_id;not null;size:64;index:idx_scene" json:"sceneId"`
	OwnerID           string    `gorm:"column:owner_id;size:64" json:"ownerId"`
	DefaultPermission int       `gorm:"column:default_permission;not null;default:0" json:"defaultPermission"`
	X                 float64   `gorm:"column:x;not null;default:0" json:"x"`
	Y                 float64   `gorm:"column:y;not null;default:0" json:"y"`
	Width             float64   `gorm:"column:width;not null;default:0" json:"width"`
	Height            float64   `gorm:"column:height;not null;default:0" json:"height"`
	Locked            bool      `gorm:"column:locked;not null;default:false" json:"locked"`
	Flags             string    `gorm:"column:flags;type:text" json:"flags"`
	Version           int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName Document's table name
func (*Document) TableName() string {
	return TableNameDocument
}

// AutoMigrate 自动迁移所有表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Document{})
}

package models

import (
	"time"

	"VidFlow/pkg/errors"

	"gorm.io/gorm"
)

// Preset 一组参考视频链接
type Preset struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	UserID    uint         `json:"userId" gorm:"index"`
	Name      string       `json:"name" gorm:"size:255"`
	Links     []PresetLink `json:"links" gorm:"foreignKey:PresetID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time    `json:"createdAt" gorm:"autoCreateTime"`
}

type PresetLink struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	PresetID  uint   `json:"presetId" gorm:"index"`
	URL       string `json:"url" gorm:"size:1024"`
	Title     string `json:"title" gorm:"size:512"`
	Thumbnail string `json:"thumbnail" gorm:"size:1024"`
	Position  int    `json:"position"`
}

type LinkInput struct {
	URL       string `json:"url" binding:"required"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
}

// CreatePreset stores the preset with its links in submitted order.
func CreatePreset(db *gorm.DB, userID uint, name string, links []LinkInput) (*Preset, error) {
	if name == "" {
		return nil, errors.Precondition("preset name is required")
	}
	p := &Preset{UserID: userID, Name: name, Links: make([]PresetLink, len(links))}
	for i, l := range links {
		p.Links[i] = PresetLink{URL: l.URL, Title: l.Title, Thumbnail: l.Thumbnail, Position: i}
	}
	if err := db.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// ListPresets returns the user's presets newest first, each with links by position.
func ListPresets(db *gorm.DB, userID uint) ([]Preset, error) {
	var presets []Preset
	err := db.Where("user_id = ?", userID).
		Preload("Links", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Order("created_at DESC").Order("id DESC").
		Find(&presets).Error
	return presets, err
}

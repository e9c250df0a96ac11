package models

import (
	stderrors "errors"
	"strings"
	"time"

	"VidFlow/pkg/errors"

	"gorm.io/gorm"
)

var ErrVoiceExists = errors.WithCode(errors.CodeConflict, "voice already exists")

type SavedVoice struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"uniqueIndex:idx_user_voice"`
	Name      string    `json:"name" gorm:"size:255"`
	VoiceID   string    `json:"voiceId" gorm:"size:128;uniqueIndex:idx_user_voice"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func isDuplicate(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// CreateSavedVoice stores a voice for the user. Saving the same voice id twice returns
// ErrVoiceExists.
func CreateSavedVoice(db *gorm.DB, userID uint, name, voiceID string) (*SavedVoice, error) {
	if name == "" || voiceID == "" {
		return nil, errors.Precondition("missing name or voiceId")
	}
	v := &SavedVoice{UserID: userID, Name: name, VoiceID: voiceID}
	if err := db.Create(v).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrVoiceExists
		}
		return nil, err
	}
	return v, nil
}

func ListSavedVoices(db *gorm.DB, userID uint) ([]SavedVoice, error) {
	var voices []SavedVoice
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&voices).Error
	return voices, err
}

// DeleteSavedVoice deletes one of the user's voices; other users' rows are not found.
func DeleteSavedVoice(db *gorm.DB, userID, id uint) error {
	res := db.Where("id = ? AND user_id = ?", id, userID).Delete(&SavedVoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.WithCode(errors.CodeNotFound, "voice not found")
	}
	return nil
}

package models

import (
	stderrors "errors"
	"net/http"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/middleware"
	"VidFlow/pkg/response"
	"VidFlow/pkg/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sessionUserKey = "uid"
	currentUserKey = "_current_user"
)

type User struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Email       string     `json:"email" gorm:"size:255;uniqueIndex"`
	DisplayName string     `json:"displayName" gorm:"size:255"`
	AvatarURL   string     `json:"avatarUrl" gorm:"size:1024"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// UpsertUserByEmail creates the user or refreshes its profile and last login. Empty
// name or avatar leave the stored values untouched.
func UpsertUserByEmail(db *gorm.DB, email, name, avatar string) (*User, error) {
	if email == "" {
		return nil, errors.Precondition("email is required")
	}
	now := time.Now()

	var existing User
	err := db.Where("email = ?", email).First(&existing).Error
	created := stderrors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return nil, err
	}

	updates := []string{"last_login", "updated_at"}
	if name != "" {
		updates = append(updates, "display_name")
	}
	if avatar != "" {
		updates = append(updates, "avatar_url")
	}
	u := User{Email: email, DisplayName: name, AvatarURL: avatar, LastLogin: &now}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&u).Error
	if err != nil {
		return nil, err
	}

	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	if created {
		util.Sig().Emit(SigUserCreate, &user)
	}
	return &user, nil
}

func GetUserByID(db *gorm.DB, id uint) (*User, error) {
	var u User
	if err := db.First(&u, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithCode(errors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return &u, nil
}

// Login stores the user id in the session.
func Login(c *gin.Context, user *User) error {
	s := sessions.Default(c)
	s.Set(sessionUserKey, user.ID)
	if err := s.Save(); err != nil {
		return err
	}
	c.Set(currentUserKey, user)
	util.Sig().Emit(SigUserLogin, user)
	return nil
}

func Logout(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}

// CurrentUser returns the signed-in user or nil.
func CurrentUser(c *gin.Context) *User {
	if v, ok := c.Get(currentUserKey); ok {
		if u, ok := v.(*User); ok {
			return u
		}
	}
	uid, ok := sessions.Default(c).Get(sessionUserKey).(uint)
	if !ok || uid == 0 {
		return nil
	}
	db := dbFromContext(c)
	if db == nil {
		return nil
	}
	u, err := GetUserByID(db, uid)
	if err != nil {
		return nil
	}
	c.Set(currentUserKey, u)
	return u
}

// AuthRequired rejects anonymous requests with 401 and exposes the user id to later
// middleware.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			response.AbortWithStatus(c, http.StatusUnauthorized, "authorization required")
			return
		}
		c.Set(middleware.UserIDKey, u.ID)
		c.Next()
	}
}

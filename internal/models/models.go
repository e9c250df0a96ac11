package models

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 信号名，通过 util.Sig() 分发
const (
	SigUserCreate = "user.create"
	SigUserLogin  = "user.login"
	SigTaskCreate = "task.create"
	// SigTaskStatus 携带 *TaskEvent，仅在条件更新真正生效时发出
	SigTaskStatus = "task.status"
)

// DbField gin.Context 中注入的 *gorm.DB
const DbField = "_vidflow_db"

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Task{}, &SavedVoice{}, &Preset{}, &PresetLink{})
}

func InjectDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DbField, db)
		c.Next()
	}
}

func dbFromContext(c *gin.Context) *gorm.DB {
	if v, ok := c.Get(DbField); ok {
		if db, ok := v.(*gorm.DB); ok {
			return db
		}
	}
	return nil
}

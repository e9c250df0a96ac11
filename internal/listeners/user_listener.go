package listeners

import (
	"VidFlow/internal/models"
	"VidFlow/pkg/logger"
	"VidFlow/pkg/util"

	"go.uber.org/zap"
)

// InitUserListeners logs account creation and sign-ins. The returned func disconnects.
func InitUserListeners() func() {
	createID := util.Sig().Connect(models.SigUserCreate, func(sender any, params ...any) {
		user := sender.(*models.User)
		logger.Info("user created", zap.Uint("user", user.ID), zap.String("email", user.Email))
	})
	loginID := util.Sig().Connect(models.SigUserLogin, func(sender any, params ...any) {
		user := sender.(*models.User)
		logger.Info("user signed in", zap.Uint("user", user.ID))
	})
	return func() {
		util.Sig().Disconnect(models.SigUserCreate, createID)
		util.Sig().Disconnect(models.SigUserLogin, loginID)
	}
}

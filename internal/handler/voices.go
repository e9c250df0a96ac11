package handlers

import (
	"strings"

	"VidFlow/internal/models"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) handleListVoices(c *gin.Context) {
	user := models.CurrentUser(c)
	voices, err := models.ListSavedVoices(h.db, user.ID)
	if err != nil {
		h.fail(c, errors.Wrap(err, "list voices"))
		return
	}
	response.Success(c, "list voices", voices)
}

func (h *Handlers) handleCreateVoice(c *gin.Context) {
	var req struct {
		Name    string `json:"name"`
		VoiceID string `json:"voiceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.VoiceID) == "" {
		response.Fail(c, "Missing name or voiceId", nil)
		return
	}

	user := models.CurrentUser(c)
	voice, err := models.CreateSavedVoice(h.db, user.ID, strings.TrimSpace(req.Name), strings.TrimSpace(req.VoiceID))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "voice saved", voice)
}

func (h *Handlers) handleDeleteVoice(c *gin.Context) {
	id := cast.ToUint(c.Param("id"))
	if id == 0 {
		response.Fail(c, "invalid id", nil)
		return
	}
	user := models.CurrentUser(c)
	if err := models.DeleteSavedVoice(h.db, user.ID, id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "voice deleted", nil)
}

func (h *Handlers) handleListPresets(c *gin.Context) {
	user := models.CurrentUser(c)
	presets, err := models.ListPresets(h.db, user.ID)
	if err != nil {
		h.fail(c, errors.Wrap(err, "list presets"))
		return
	}
	response.Success(c, "list presets", presets)
}

func (h *Handlers) handleCreatePreset(c *gin.Context) {
	var req struct {
		Name  string             `json:"name"`
		Links []models.LinkInput `json:"links"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Fail(c, "Missing preset name", nil)
		return
	}

	user := models.CurrentUser(c)
	preset, err := models.CreatePreset(h.db, user.ID, strings.TrimSpace(req.Name), req.Links)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, "preset saved", preset)
}

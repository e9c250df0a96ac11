package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"VidFlow/pkg/errors"
	"VidFlow/pkg/metrics"
	"VidFlow/pkg/response"
	"VidFlow/pkg/util"

	"github.com/gin-gonic/gin"
)

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	// 检查数据库连接
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"host":   metrics.CollectHostStats(ctx, h.deps.DiskPath),
	})
}

// UploadName builds the stored name of an uploaded file: upload time in unix
// milliseconds, a dash, then the client name without characters outside [a-zA-Z0-9.-].
func UploadName(original string, at time.Time) string {
	return fmt.Sprintf("%d-%s", at.UnixMilli(), util.SanitizeFilename(filepath.Base(original)))
}

func (h *Handlers) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, "No file provided", nil)
		return
	}
	if err := os.MkdirAll(h.deps.UploadDir, 0o755); err != nil {
		h.fail(c, errors.Wrap(err, "create upload dir"))
		return
	}

	name := UploadName(fh.Filename, time.Now())
	dst := filepath.Join(h.deps.UploadDir, name)
	src, err := fh.Open()
	if err != nil {
		h.fail(c, errors.Wrap(err, "open upload"))
		return
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		h.fail(c, errors.Wrapf(err, "create %s", dst))
		return
	}
	size, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		h.fail(c, errors.Wrapf(err, "write %s", dst))
		return
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	response.Success(c, "file uploaded", gin.H{"filePath": abs, "fileName": name, "size": size})
}

package handlers

import (
	"path/filepath"
	"strings"

	"VidFlow/pkg/errors"
	stores "VidFlow/pkg/storage"
)

// mediaRoots 客户端可以引用的服务端目录：上传目录与音视频产物目录
func (h *Handlers) mediaRoots() []string {
	roots := []string{h.deps.UploadDir}
	for _, a := range []*stores.Artifacts{h.deps.Audio, h.deps.Videos} {
		if a != nil && a.Dir != "" {
			roots = append(roots, a.Dir)
		}
	}
	return roots
}

// resolveMediaPath turns a client supplied path into the canonical path of a file inside one
// of the media roots. Symlinks are resolved before the check, and a missing file outside
// the roots reports the same error as an existing one.
func (h *Handlers) resolveMediaPath(field, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.Precondition("%s is empty", field)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Precondition("%s is not a valid path", field)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if h.insideRoots(abs) {
			return "", errors.Precondition("%s not found: %s", field, p)
		}
		return "", errors.Precondition("%s must point into an upload or media directory", field)
	}
	if !h.insideRoots(resolved) {
		return "", errors.Precondition("%s must point into an upload or media directory", field)
	}
	return resolved, nil
}

func (h *Handlers) insideRoots(p string) bool {
	for _, root := range h.mediaRoots() {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if within(abs, p) {
			return true
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs && within(resolved, p) {
			return true
		}
	}
	return false
}

// within reports whether p lies strictly below dir. Both must be absolute.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

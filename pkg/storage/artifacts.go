package stores

import (
	"context"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"VidFlow/pkg/errors"
)

// Artifact is a file produced by the pipeline: where it lives on disk for the media
// tools and where clients can fetch it.
type Artifact struct {
	Name string `json:"name"`
	Path string `json:"filePath"`
	URL  string `json:"publicUrl"`
	Size int64  `json:"size"`
}

// Artifacts keeps files under a local directory served at URLPrefix. With a Mirror
// configured, every saved or published file is uploaded and the mirror URL wins.
type Artifacts struct {
	Dir       string
	URLPrefix string
	Mirror    Store
	// KeyPrefix namespaces mirror keys, e.g. "audio/".
	KeyPrefix string
}

func NewArtifacts(dir, urlPrefix string, mirror Store, keyPrefix string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create artifact dir %s", dir)
	}
	return &Artifacts{Dir: dir, URLPrefix: urlPrefix, Mirror: mirror, KeyPrefix: keyPrefix}, nil
}

// Path returns the local path for name. name must be a bare file name.
func (a *Artifacts) Path(name string) string {
	return filepath.Join(a.Dir, filepath.Base(name))
}

func (a *Artifacts) localURL(name string) string {
	if a.URLPrefix == "" {
		return ""
	}
	return strings.TrimRight(a.URLPrefix, "/") + "/" + path.Base(name)
}

// Save writes r to the local directory under name and publishes it.
func (a *Artifacts) Save(ctx context.Context, name string, r io.Reader) (*Artifact, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create artifact dir")
	}
	p := a.Path(name)
	f, err := os.Create(p)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", p)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(p)
		return nil, errors.Wrapf(err, "write %s", p)
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrapf(err, "close %s", p)
	}
	return a.Publish(ctx, name)
}

// Publish exposes a file that already sits at Path(name), e.g. an ffmpeg output.
func (a *Artifacts) Publish(ctx context.Context, name string) (*Artifact, error) {
	p := a.Path(name)
	st, err := os.Stat(p)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodePrecondition, "artifact missing")
	}
	art := &Artifact{Name: filepath.Base(name), Path: p, URL: a.localURL(name), Size: st.Size()}
	if a.Mirror == nil {
		return art, nil
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p)
	}
	defer f.Close()
	key := a.KeyPrefix + art.Name
	if err := a.Mirror.Write(ctx, key, f, st.Size(), contentType(p)); err != nil {
		return nil, errors.WrapCode(err, errors.CodeUpstream, "upload artifact").WithContext("key", key)
	}
	art.URL = a.Mirror.PublicURL(key)
	return art, nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(filepath.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"VidFlow/internal/listeners"
	"VidFlow/internal/models"
	"VidFlow/pkg/config"
	"VidFlow/pkg/errors"
	"VidFlow/pkg/llm"
	"VidFlow/pkg/media"
	"VidFlow/pkg/queue"
	"VidFlow/pkg/search"
	"VidFlow/pkg/sse"
	stores "VidFlow/pkg/storage"
	"VidFlow/pkg/transcript"
	"VidFlow/pkg/tts"
	"VidFlow/pkg/util"
	"VidFlow/pkg/youtube"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type fakeIdentity struct {
	identity *Identity
	err      error
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeIdentity) Exchange(_ context.Context, code string) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type fakeScripts struct{ got llm.ScriptRequest }

func (f *fakeScripts) Write(_ context.Context, req llm.ScriptRequest) (*llm.Script, error) {
	f.got = req
	return &llm.Script{Text: "Hello viewers.", Model: "test-model", Usage: llm.Usage{InputTokens: 10, OutputTokens: 3}}, nil
}

type fakeTranscripts struct{}

func (fakeTranscripts) FetchAll(_ context.Context, urls []string) []transcript.Result {
	out := make([]transcript.Result, len(urls))
	for i, u := range urls {
		out[i] = transcript.Result{URL: u, Transcript: "text of " + u}
		if strings.Contains(u, "broken") {
			out[i] = transcript.Result{URL: u, Error: "transcript api: Not Found"}
		}
	}
	return out
}

type env struct {
	t        *testing.T
	db       *gorm.DB
	engine   *gin.Engine
	queue    *queue.MemoryQueue
	identity *fakeIdentity
	deps     *Deps
	cookies  map[string]*http.Cookie
}

func newEnv(t *testing.T, mutate func(d *Deps)) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := util.InitDatabase(io.Discard, "", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	e := &env{
		t:        t,
		db:       db,
		queue:    queue.NewMemoryQueue(16),
		identity: &fakeIdentity{identity: &Identity{Email: "ada@example.com", Name: "Ada", AvatarURL: "https://img/ada.png"}},
		cookies:  map[string]*http.Cookie{},
	}
	deps := Deps{
		Queue:       e.queue,
		Hub:         sse.NewHub(time.Minute),
		Identity:    e.identity,
		Transcripts: fakeTranscripts{},
		UploadDir:   filepath.Join(t.TempDir(), "uploads"),
		DiskPath:    t.TempDir(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	e.deps = &deps

	e.engine = gin.New()
	e.engine.Use(sessions.Sessions("vidflow", cookie.NewStore([]byte("test-secret"))))
	NewHandlers(db, &config.Config{}, deps).Register(e.engine)
	return e
}

func (e *env) do(method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header[k] = v
	}
	for _, ck := range e.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		e.cookies[ck.Name] = ck
	}
	return rr
}

func (e *env) json(method, path string, v any, header http.Header) *httptest.ResponseRecorder {
	b, err := json.Marshal(v)
	require.NoError(e.t, err)
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return e.do(method, path, bytes.NewReader(b), header)
}

func (e *env) login(next string) *httptest.ResponseRecorder {
	rr := e.do(http.MethodGet, "/auth/login?next="+url.QueryEscape(next), nil, nil)
	require.Equal(e.t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(e.t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(e.t, state)
	return e.do(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil, nil)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestAuthCallbackUpsertsUserAndRedirects(t *testing.T) {
	e := newEnv(t, nil)

	rr := e.login("/app/tts")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/app/tts", rr.Header().Get("Location"))

	var user models.User
	decode(t, e.do(http.MethodGet, "/auth/info", nil, nil), &user)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.DisplayName)

	// 再次登录更新资料但不新建用户
	e.identity.identity = &Identity{Email: "ada@example.com", Name: "Ada L."}
	e.cookies = map[string]*http.Cookie{}
	rr = e.login("//evil.example.com")
	assert.Equal(t, "/", rr.Header().Get("Location"))

	var count int64
	require.NoError(t, e.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	decode(t, e.do(http.MethodGet, "/auth/info", nil, nil), &user)
	assert.Equal(t, "Ada L.", user.DisplayName)

	rr = e.do(http.MethodGet, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/auth/info", nil, nil).Code)
}

func TestAuthCallbackFailuresRedirectToErrorPage(t *testing.T) {
	e := newEnv(t, nil)

	rr := e.do(http.MethodGet, "/auth/callback?code=abc&state=forged", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/auth/auth-code-error", rr.Header().Get("Location"))

	e.identity.err = stderrors.New("invalid_grant")
	rr = e.login("/")
	assert.Equal(t, "/auth/auth-code-error", rr.Header().Get("Location"))

	e.identity.err = nil
	e.identity.identity = &Identity{Name: "no email"}
	rr = e.login("/")
	assert.Equal(t, "/auth/auth-code-error", rr.Header().Get("Location"))
}

func TestLoginWithoutProvider(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.Identity = nil })
	rr := e.do(http.MethodGet, "/auth/login", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Msg, "GOOGLE_CLIENT_ID")
}

func TestAPIRequiresLogin(t *testing.T) {
	e := newEnv(t, nil)
	rr := e.do(http.MethodGet, "/api/tts/tasks", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateTaskEnqueuesAndReturnsAccepted(t *testing.T) {
	e := newEnv(t, nil)
	e.login("/")

	rr := e.json(http.MethodPost, "/api/tts/tasks", gin.H{"prompt": "Once upon a time", "voiceId": "voice-1"},
		http.Header{"Idempotency-Key": {"k-1"}})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var created struct {
		TaskID string `json:"taskId"`
	}
	decode(t, rr, &created)
	require.NotEmpty(t, created.TaskID)
	assert.Equal(t, 1, e.queue.Len())

	rr = e.json(http.MethodPost, "/api/tts/tasks", gin.H{"prompt": "Once upon a time", "voiceId": "voice-1"},
		http.Header{"Idempotency-Key": {"k-1"}})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, e.queue.Len())

	var task models.Task
	decode(t, e.do(http.MethodGet, "/api/tts/tasks/"+created.TaskID, nil, nil), &task)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Nil(t, task.AudioURL)

	var tasks []models.Task
	decode(t, e.do(http.MethodGet, "/api/tts/tasks", nil, nil), &tasks)
	require.Len(t, tasks, 1)

	rr = e.json(http.MethodPost, "/api/tts/tasks", gin.H{"prompt": "no voice"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing prompt or voiceId", decode(t, rr, nil).Msg)
}

func TestTaskOwnership(t *testing.T) {
	e := newEnv(t, nil)
	other, err := models.CreateTask(e.db, 999, "someone else's narration", "v")
	require.NoError(t, err)

	e.login("/")
	rr := e.do(http.MethodGet, "/api/tts/tasks/"+other.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = e.do(http.MethodGet, "/api/tts/tasks/"+other.ID+"/events", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchTasks(t *testing.T) {
	for _, withIndex := range []bool{false, true} {
		t.Run(map[bool]string{false: "database", true: "bleve"}[withIndex], func(t *testing.T) {
			var idx *search.TaskIndex
			if withIndex {
				var err error
				idx, err = search.OpenTaskIndex("")
				require.NoError(t, err)
				defer idx.Close()
				defer (&listeners.TaskListeners{Index: idx}).Init()()
			}
			e := newEnv(t, func(d *Deps) { d.Index = idx })
			e.login("/")
			for _, p := range []string{"The Roman Empire at its height", "Baking sourdough bread"} {
				rr := e.json(http.MethodPost, "/api/tts/tasks", gin.H{"prompt": p, "voiceId": "v"}, nil)
				require.Equal(t, http.StatusAccepted, rr.Code)
			}

			var tasks []models.Task
			rr := e.do(http.MethodGet, "/api/tts/tasks/search?q=roman", nil, nil)
			require.Equal(t, http.StatusOK, rr.Code)
			decode(t, rr, &tasks)
			require.Len(t, tasks, 1)
			assert.Contains(t, tasks[0].Prompt, "Roman")

			assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/tts/tasks/search", nil, nil).Code)
		})
	}
}

func TestTaskEventsForFinishedTask(t *testing.T) {
	e := newEnv(t, nil)
	e.login("/")
	var user models.User
	decode(t, e.do(http.MethodGet, "/auth/info", nil, nil), &user)

	task, err := models.CreateTask(e.db, user.ID, "short", "v")
	require.NoError(t, err)
	_, _ = models.ClaimTask(e.db, task.ID, time.Now(), 3)
	_, _ = models.CompleteTask(e.db, task.ID, "/temp_audio/done.mp3")

	rr := e.do(http.MethodGet, "/api/tts/tasks/"+task.ID+"/events", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "event: status\n")
	assert.Contains(t, body, `"status":"COMPLETED"`)
	assert.Contains(t, body, `"audioUrl":"/temp_audio/done.mp3"`)
}

func TestTaskEventsStreamLiveTransitions(t *testing.T) {
	e := newEnv(t, nil)
	defer (&listeners.TaskListeners{Hub: e.deps.Hub}).Init()()
	e.login("/")
	var user models.User
	decode(t, e.do(http.MethodGet, "/auth/info", nil, nil), &user)
	task, err := models.CreateTask(e.db, user.ID, "live", "v")
	require.NoError(t, err)

	srv := httptest.NewServer(e.engine)
	defer srv.Close()
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/tts/tasks/"+task.ID+"/events", nil)
	require.NoError(t, err)
	for _, ck := range e.cookies {
		req.AddCookie(ck)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- strings.TrimPrefix(sc.Text(), "data: ")
			}
		}
	}()

	next := func() models.TaskEvent {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed early")
			var ev models.TaskEvent
			require.NoError(t, json.Unmarshal([]byte(l), &ev))
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
		}
		return models.TaskEvent{}
	}

	assert.Equal(t, models.TaskPending, next().Status)
	_, _ = models.ClaimTask(e.db, task.ID, time.Now(), 3)
	assert.Equal(t, models.TaskProcessing, next().Status)
	_, _ = models.FailTask(e.db, task.ID, "fish audio: voice not found")
	ev := next()
	assert.Equal(t, models.TaskFailed, ev.Status)
	assert.Equal(t, "fish audio: voice not found", ev.Error)

	select {
	case _, ok := <-lines:
		assert.False(t, ok, "stream should end after a terminal event")
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close")
	}
}

func TestVoicesAndPresets(t *testing.T) {
	e := newEnv(t, nil)
	e.login("/")

	rr := e.json(http.MethodPost, "/api/voices", gin.H{"name": "Narrator", "voiceId": "fish-1"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var voice models.SavedVoice
	decode(t, rr, &voice)

	rr = e.json(http.MethodPost, "/api/voices", gin.H{"name": "Again", "voiceId": "fish-1"}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var voices []models.SavedVoice
	decode(t, e.do(http.MethodGet, "/api/voices", nil, nil), &voices)
	assert.Len(t, voices, 1)

	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, "/api/voices/"+jsonNumber(voice.ID), nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/api/voices/"+jsonNumber(voice.ID), nil, nil).Code)

	rr = e.json(http.MethodPost, "/api/presets", gin.H{
		"name": "history",
		"links": []gin.H{
			{"url": "https://youtu.be/b", "title": "B"},
			{"url": "https://youtu.be/a", "title": "A"},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var presets []models.Preset
	decode(t, e.do(http.MethodGet, "/api/presets", nil, nil), &presets)
	require.Len(t, presets, 1)
	require.Len(t, presets[0].Links, 2)
	assert.Equal(t, "B", presets[0].Links[0].Title)
	assert.Equal(t, "A", presets[0].Links[1].Title)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestStudioScript(t *testing.T) {
	scripts := &fakeScripts{}
	e := newEnv(t, func(d *Deps) { d.Scripts = scripts })
	e.login("/")

	rr := e.json(http.MethodPost, "/api/studio/script", gin.H{"idea": "Roman roads", "lengthInMinutes": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.json(http.MethodPost, "/api/studio/script", gin.H{
		"idea":               "Roman roads",
		"lengthInMinutes":    2,
		"tone":               "Educational",
		"inspirationScripts": []gin.H{{"title": "Ref", "script": "Some transcript"}},
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var script llm.Script
	decode(t, rr, &script)
	assert.Equal(t, "Hello viewers.", script.Text)
	assert.Equal(t, int64(3), script.Usage.OutputTokens)
	assert.Equal(t, 2.0, scripts.got.Minutes)
	require.Len(t, scripts.got.References, 1)
}

func TestUnconfiguredServicesReportSetting(t *testing.T) {
	e := newEnv(t, func(d *Deps) {
		d.Unavailable = map[string]error{"llm": stderrors.New("ANTHROPIC_API_KEY is not configured")}
	})
	e.login("/")

	rr := e.json(http.MethodPost, "/api/studio/metadata", gin.H{"script": "Hello"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Msg, "ANTHROPIC_API_KEY")

	rr = e.json(http.MethodPost, "/api/studio/publish", gin.H{"videoPath": "/tmp/v.mp4", "title": "t"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Msg, "YOUTUBE_REFRESH_TOKEN")

	rr = e.json(http.MethodPost, "/api/studio/publish", gin.H{"title": "t"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTranscriptsAreSettled(t *testing.T) {
	e := newEnv(t, nil)
	e.login("/")

	rr := e.json(http.MethodPost, "/api/youtube/transcripts", gin.H{"urls": []string{"https://youtu.be/ok", "https://youtu.be/broken"}}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var results []transcript.Result
	decode(t, rr, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "text of https://youtu.be/ok", results[0].Transcript)
	assert.NotEmpty(t, results[1].Error)
}

func TestUploadSanitizesName(t *testing.T) {
	e := newEnv(t, nil)
	e.login("/")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "my clip (final)!.mp4")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("video-bytes"))
	require.NoError(t, mw.Close())

	rr := e.do(http.MethodPost, "/api/uploads", &buf, http.Header{"Content-Type": {mw.FormDataContentType()}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		FilePath string `json:"filePath"`
		FileName string `json:"fileName"`
	}
	decode(t, rr, &out)
	assert.Regexp(t, `^\d+-myclipfinal\.mp4$`, out.FileName)
	data, err := os.ReadFile(out.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	rr = e.do(http.MethodPost, "/api/uploads", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "1700000000123-background.mp4", UploadName("background.mp4", at))
	assert.Equal(t, "1700000000123-passwd", UploadName("../../etc/passwd", at))
	assert.Equal(t, "1700000000123-ab-b.c", UploadName("a b-b?.c", at))
}

func TestHealthCheck(t *testing.T) {
	e := newEnv(t, nil)
	rr := e.do(http.MethodGet, "/api/system/health", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status string `json:"status"`
		Host   struct {
			Goroutines int `json:"goroutines"`
		} `json:"host"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Positive(t, body.Host.Goroutines)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/app", safeNext("/app"))
	assert.Equal(t, "/", safeNext("https://evil.example.com"))
	assert.Equal(t, "/", safeNext("//evil.example.com"))
	assert.Equal(t, "/", safeNext(""))
}

type fakeComposer struct {
	duration float64
	probed   []string
	composed []media.ComposeRequest
}

func (f *fakeComposer) ProbeDuration(_ context.Context, path string) (float64, error) {
	f.probed = append(f.probed, path)
	return f.duration, nil
}

func (f *fakeComposer) Compose(_ context.Context, req media.ComposeRequest) (*media.ComposeResult, error) {
	f.composed = append(f.composed, req)
	if err := os.WriteFile(req.OutputPath, []byte("mp4"), 0o644); err != nil {
		return nil, err
	}
	return &media.ComposeResult{OutputPath: req.OutputPath, VideoDuration: 5, AudioDuration: req.AudioDuration, LoopCount: 3, Size: 3}, nil
}

type fakePublisher struct{ uploads []youtube.Upload }

func (f *fakePublisher) Publish(_ context.Context, up youtube.Upload) (*youtube.Result, error) {
	f.uploads = append(f.uploads, up)
	return &youtube.Result{VideoID: "vid123", URL: "https://www.youtube.com/watch?v=vid123"}, nil
}

type fakeMetadata struct{}

func (fakeMetadata) Generate(_ context.Context, script string) (*llm.Metadata, error) {
	return &llm.Metadata{Title: "About " + script, Description: "desc", Strategy: llm.StrategyStrict}, nil
}

type fakeSpeech struct{ voices []string }

func (f *fakeSpeech) Synthesize(_ context.Context, voiceID, text string) (*tts.Speech, error) {
	f.voices = append(f.voices, voiceID)
	return &tts.Speech{Path: "/srv/temp_audio/a.mp3", URL: "/temp_audio/a.mp3", Format: "mp3", Size: int64(len(text))}, nil
}

type studio struct {
	*env
	composer  *fakeComposer
	publisher *fakePublisher
	audio     *stores.Artifacts
	videos    *stores.Artifacts
}

func newStudio(t *testing.T) *studio {
	t.Helper()
	root := t.TempDir()
	audio, err := stores.NewArtifacts(filepath.Join(root, "temp_audio"), "/temp_audio", nil, "")
	require.NoError(t, err)
	videos, err := stores.NewArtifacts(filepath.Join(root, "videos"), "/videos", nil, "")
	require.NoError(t, err)
	st := &studio{composer: &fakeComposer{duration: 12.5}, publisher: &fakePublisher{}, audio: audio, videos: videos}
	st.env = newEnv(t, func(d *Deps) {
		d.Composer = st.composer
		d.Publisher = st.publisher
		d.Audio = audio
		d.Videos = videos
		d.UploadDir = filepath.Join(root, "uploads")
	})
	require.NoError(t, os.MkdirAll(st.deps.UploadDir, 0o755))
	st.login("/")
	return st
}

func (st *studio) file(dir, name string) string {
	p := filepath.Join(dir, name)
	require.NoError(st.t, os.WriteFile(p, []byte("data"), 0o644))
	resolved, err := filepath.EvalSymlinks(p)
	require.NoError(st.t, err)
	return resolved
}

func TestStudioVideoProbesAndNamesOutput(t *testing.T) {
	st := newStudio(t)
	bg := st.file(st.deps.UploadDir, "1700000000000-loop.mp4")
	narration := st.file(st.audio.Dir, "merged-1-x.mp3")

	rr := st.json(http.MethodPost, "/api/studio/video", gin.H{
		"backgroundVideoPath": bg,
		"audioPath":           narration,
		"outputFilename":      "../../etc/cron.d/final.mp4",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		FilePath  string  `json:"filePath"`
		Duration  float64 `json:"duration"`
		LoopCount int     `json:"loopCount"`
		URL       string  `json:"publicUrl"`
	}
	decode(t, rr, &out)

	assert.Equal(t, []string{narration}, st.composer.probed)
	require.Len(t, st.composer.composed, 1)
	req := st.composer.composed[0]
	assert.Equal(t, 12.5, req.AudioDuration)
	assert.Equal(t, bg, req.BackgroundPath)
	assert.Equal(t, filepath.Join(st.videos.Dir, "final.mp4"), req.OutputPath)
	assert.Equal(t, "/videos/final.mp4", out.URL)
	assert.Equal(t, 3, out.LoopCount)

	// 已知时长不再探测，缺省文件名按时间生成
	rr = st.json(http.MethodPost, "/api/studio/video", gin.H{
		"backgroundVideoPath": bg,
		"audioPath":           narration,
		"audioDuration":       30,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decode(t, rr, &out)
	assert.Len(t, st.composer.probed, 1)
	assert.Equal(t, 30.0, st.composer.composed[1].AudioDuration)
	assert.Regexp(t, `^/videos/video-\d+\.mp4$`, out.URL)

	rr = st.json(http.MethodPost, "/api/studio/video", gin.H{"audioPath": narration}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStudioRejectsPathsOutsideMediaDirs(t *testing.T) {
	st := newStudio(t)
	video := st.file(st.deps.UploadDir, "clip.mp4")
	narration := st.file(st.audio.Dir, "a.mp3")
	outside := st.file(t.TempDir(), "secret.env")
	link := filepath.Join(st.deps.UploadDir, "link.mp4")
	require.NoError(t, os.Symlink(outside, link))

	cases := []gin.H{
		{"videoPath": "/etc/passwd", "title": "t", "thumbnailPath": "/root/.ssh/id_rsa"},
		{"videoPath": video, "title": "t", "thumbnailPath": "/etc/passwd"},
		{"videoPath": filepath.Join(st.deps.UploadDir, "..", "..", filepath.Base(filepath.Dir(outside)), "secret.env"), "title": "t"},
		{"videoPath": link, "title": "t"},
		{"videoPath": "/no/such/file.mp4", "title": "t"},
	}
	for _, body := range cases {
		rr := st.json(http.MethodPost, "/api/studio/publish", body, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%v: %s", body, rr.Body.String())
	}
	assert.Empty(t, st.publisher.uploads)

	for _, body := range []gin.H{
		{"backgroundVideoPath": "/etc/passwd", "audioPath": narration},
		{"backgroundVideoPath": video, "audioPath": outside},
		{"backgroundVideoPath": link, "audioPath": narration},
	} {
		rr := st.json(http.MethodPost, "/api/studio/video", body, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%v: %s", body, rr.Body.String())
	}
	assert.Empty(t, st.composer.probed)
	assert.Empty(t, st.composer.composed)

	rr := st.json(http.MethodPost, "/api/studio/publish", gin.H{"videoPath": filepath.Join(st.deps.UploadDir, "missing.mp4"), "title": "t"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Msg, "not found")
}

func TestStudioPublish(t *testing.T) {
	st := newStudio(t)
	video := st.file(st.videos.Dir, "final.mp4")
	thumb := st.file(st.deps.UploadDir, "thumb.png")

	rr := st.json(http.MethodPost, "/api/studio/publish", gin.H{
		"videoPath":     video,
		"title":         "Roman roads",
		"description":   "How they were built",
		"tags":          []string{"history"},
		"thumbnailPath": thumb,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res youtube.Result
	decode(t, rr, &res)
	assert.Equal(t, "vid123", res.VideoID)
	require.Len(t, st.publisher.uploads, 1)
	assert.Equal(t, video, st.publisher.uploads[0].VideoPath)
	assert.Equal(t, thumb, st.publisher.uploads[0].ThumbnailPath)
	assert.Equal(t, []string{"history"}, st.publisher.uploads[0].Tags)

	rr = st.json(http.MethodPost, "/api/studio/publish", gin.H{"videoPath": video}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing videoPath or title", decode(t, rr, nil).Msg)
	assert.Len(t, st.publisher.uploads, 1)
}

func TestStudioSpeechAndMetadata(t *testing.T) {
	speech := &fakeSpeech{}
	e := newEnv(t, func(d *Deps) {
		d.Synth = speech
		d.Metadata = fakeMetadata{}
	})
	e.login("/")

	rr := e.json(http.MethodPost, "/api/studio/speech", gin.H{"text": "Hello there", "voiceId": " voice-9 "}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sp tts.Speech
	decode(t, rr, &sp)
	assert.Equal(t, "/temp_audio/a.mp3", sp.URL)
	assert.Equal(t, []string{"voice-9"}, speech.voices)

	rr = e.json(http.MethodPost, "/api/studio/speech", gin.H{"text": "Hello there"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing text or voiceId", decode(t, rr, nil).Msg)

	rr = e.json(http.MethodPost, "/api/studio/metadata", gin.H{"script": "roads"}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var meta llm.Metadata
	decode(t, rr, &meta)
	assert.Equal(t, "About roads", meta.Title)
	assert.Equal(t, llm.StrategyStrict, meta.Strategy)

	rr = e.json(http.MethodPost, "/api/studio/metadata", gin.H{"script": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGoogleProviderExchange(t *testing.T) {
	var truncate atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
			if truncate.Load() {
				conn, buf, err := w.(http.Hijacker).Hijack()
				require.NoError(t, err)
				defer conn.Close()
				_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 200\r\n\r\n{\"email\":")
				_ = buf.Flush()
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"email":"ada@example.com","name":"Ada","picture":"https://img/ada.png"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := NewGoogleProvider("client", "secret", "http://localhost/auth/callback")
	require.NoError(t, err)
	p.oauth.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	p.userInfoURL = srv.URL + "/userinfo"

	id, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Email: "ada@example.com", Name: "Ada", AvatarURL: "https://img/ada.png"}, id)

	truncate.Store(true)
	_, err = p.Exchange(context.Background(), "code-2")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUpstream, errors.GetCode(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

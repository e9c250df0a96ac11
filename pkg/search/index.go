// Package search keeps a bleve full-text index over task prompts.
package search

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
)

var ErrClosed = errors.New("search index closed")

// TaskDoc is the indexed view of a task.
type TaskDoc struct {
	ID        string
	UserID    uint
	VoiceID   string
	Status    string
	Prompt    string
	CreatedAt time.Time
}

type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type TaskIndex struct {
	index  bleve.Index
	mu     sync.RWMutex
	closed bool
}

// OpenTaskIndex opens or creates the index at path. An empty path keeps the index in
// memory.
func OpenTaskIndex(path string) (*TaskIndex, error) {
	m := BuildTaskMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, err
		}
		return &TaskIndex{index: idx}, nil
	}

	var idx bleve.Index
	if _, err := os.Stat(path); err == nil {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		idx, err = bleve.New(path, m)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}
	return &TaskIndex{index: idx}, nil
}

func (t *TaskIndex) guard() error {
	if t.closed {
		return ErrClosed
	}
	return nil
}

// Index adds or replaces doc.
func (t *TaskIndex) Index(_ context.Context, doc TaskDoc) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.guard(); err != nil {
		return err
	}
	return t.index.Index(doc.ID, map[string]any{
		"type":       taskDocType,
		"user_id":    strconv.FormatUint(uint64(doc.UserID), 10),
		"voice_id":   doc.VoiceID,
		"status":     doc.Status,
		"prompt":     doc.Prompt,
		"created_at": doc.CreatedAt,
	})
}

// UpdateStatus rewrites the stored status of an indexed task. Unknown ids are ignored.
func (t *TaskIndex) UpdateStatus(ctx context.Context, id, status string) error {
	t.mu.RLock()
	if err := t.guard(); err != nil {
		t.mu.RUnlock()
		return err
	}
	d, err := t.index.Document(id)
	t.mu.RUnlock()
	if err != nil || d == nil {
		return err
	}

	doc := TaskDoc{ID: id, Status: status}
	sr := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	sr.Fields = []string{"*"}
	res, err := t.index.SearchInContext(ctx, sr)
	if err != nil || len(res.Hits) == 0 {
		return err
	}
	f := res.Hits[0].Fields
	doc.Prompt, _ = f["prompt"].(string)
	doc.VoiceID, _ = f["voice_id"].(string)
	if uid, ok := f["user_id"].(string); ok {
		n, _ := strconv.ParseUint(uid, 10, 64)
		doc.UserID = uint(n)
	}
	if ts, ok := f["created_at"].(string); ok {
		doc.CreatedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return t.Index(ctx, doc)
}

// Search matches q against the prompts of userID's tasks, best first.
func (t *TaskIndex) Search(ctx context.Context, userID uint, q string, limit int) ([]Hit, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	match := bleve.NewMatchQuery(q)
	match.SetField("prompt")
	owner := bleve.NewTermQuery(strconv.FormatUint(uint64(userID), 10))
	owner.SetField("user_id")

	sr := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(match, owner), limit, 0, false)
	res, err := t.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (t *TaskIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.index.Close()
}

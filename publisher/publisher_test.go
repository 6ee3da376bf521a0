package publisher

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/korjavin/newsdigestbot/blocks"
	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
)

type postedMessage struct {
	channelID string
	msg       blocks.Message
	parent    channel.MessageID
	id        channel.MessageID
}

type fakeChannel struct {
	mu       sync.Mutex
	seq      int64
	posts    []postedMessage
	uploads  []channel.File
	parents  []channel.MessageID
	failPost func(msg blocks.Message) bool
	emptyID  bool
}

func (f *fakeChannel) PostMessage(ctx context.Context, channelID string, msg blocks.Message, parent channel.MessageID) (channel.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPost != nil && f.failPost(msg) {
		return "", errors.New("post rejected")
	}
	if f.emptyID {
		return "", nil
	}
	f.seq++
	id := channel.NewMessageID(time.Unix(1741082400, 0), f.seq)
	f.posts = append(f.posts, postedMessage{channelID, msg, parent, id})
	return id, nil
}

func (f *fakeChannel) UploadFile(ctx context.Context, channelID string, file channel.File, parent channel.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, file)
	f.parents = append(f.parents, parent)
	return nil
}

func (f *fakeChannel) AddReaction(ctx context.Context, channelID string, id channel.MessageID, emoji string) error {
	return nil
}

func (f *fakeChannel) LookupUser(ctx context.Context, userID string) (string, error) {
	return userID, nil
}

type memPosts struct {
	mu    sync.Mutex
	posts map[string]models.PostRecord
}

func newMemPosts() *memPosts { return &memPosts{posts: make(map[string]models.PostRecord)} }

func (m *memPosts) SavePost(ctx context.Context, post models.PostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.MessageID] = post
	return nil
}

func (m *memPosts) GetPost(ctx context.Context, id string) (*models.PostRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func newsItem(title string) models.ContentItem {
	return models.ContentItem{
		Category:   models.CategoryNews,
		Title:      title,
		Body:       "Body of " + title,
		SourceURL:  "https://news.test/" + title,
		Quiz:       []models.QuizQuestion{{Prompt: "Q?", Options: []string{strings.Repeat("x", 80), "short"}, Correct: "short"}},
		Vocabulary: []models.VocabularyTerm{{Term: "term", Definition: "def"}},
	}
}

func TestPublishInline(t *testing.T) {
	ch := &fakeChannel{}
	posts := newMemPosts()
	p := New(ch, posts, Config{}, logger.Nop())

	item := newsItem("launch")
	id, err := p.Publish(context.Background(), &item, "@news", Options{IncludeVocabulary: true, IncludeQuiz: true})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if item.PublishedMessageID != id.String() {
		t.Fatalf("PublishedMessageID = %q, want %q", item.PublishedMessageID, id)
	}

	msg := ch.posts[0].msg
	kinds := make([]blocks.Kind, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		kinds = append(kinds, b.Kind)
	}
	want := []blocks.Kind{blocks.KindHeader, blocks.KindSection, blocks.KindLink, blocks.KindDivider, blocks.KindVocabulary, blocks.KindQuiz}
	if len(kinds) != len(want) {
		t.Fatalf("blocks = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("blocks = %v", kinds)
		}
	}

	opt := msg.QuizControls()[0].Options[0].Text
	if len(opt) != 75 || opt != strings.Repeat("x", 72)+"..." {
		t.Fatalf("truncated option = %q", opt)
	}

	rec, err := posts.GetPost(context.Background(), id.String())
	if err != nil || len(rec.Questions) != 1 || rec.Questions[0].Correct != "short" {
		t.Fatalf("post record = %+v, %v", rec, err)
	}
}

func TestPublishNoMessageID(t *testing.T) {
	p := New(&fakeChannel{emptyID: true}, nil, Config{}, logger.Nop())
	item := newsItem("x")
	if _, err := p.Publish(context.Background(), &item, "@news", Options{}); !errors.Is(err, ErrNoMessageID) {
		t.Fatalf("expected ErrNoMessageID, got %v", err)
	}
}

func TestPublishAttachments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	audioDir := t.TempDir()
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(audioDir, "narration-1.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	ch := &fakeChannel{}
	p := New(ch, nil, Config{AudioDir: audioDir, TempDir: tmpDir}, logger.Nop())

	item := newsItem("pic")
	item.ImageRef = srv.URL + "/photos/cat?size=large"
	item.AudioRef = "/audio/narration-1.mp3"
	if _, err := p.Publish(context.Background(), &item, "@news", Options{}); err != nil {
		t.Fatal(err)
	}
	if len(ch.uploads) != 2 {
		t.Fatalf("expected image and audio uploads, got %d", len(ch.uploads))
	}
	if ch.uploads[0].Name != "cat.png" || string(ch.uploads[0].Data) != "PNGDATA" || ch.uploads[0].Type != channel.FileImage {
		t.Fatalf("image upload = %+v", ch.uploads[0])
	}
	if ch.uploads[1].Type != channel.FileAudio || string(ch.uploads[1].Data) != "ID3" {
		t.Fatalf("audio upload = %+v", ch.uploads[1])
	}
	for i, parent := range ch.parents {
		if parent != ch.posts[0].id {
			t.Fatalf("upload %d parent = %q, want primary %q", i, parent, ch.posts[0].id)
		}
	}
	if entries, _ := os.ReadDir(tmpDir); len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}

	// a broken image never fails the publish
	ch2 := &fakeChannel{}
	p2 := New(ch2, nil, Config{TempDir: tmpDir}, logger.Nop())
	broken := newsItem("broken")
	broken.ImageRef = srv.URL + "/missing.png"
	if _, err := p2.Publish(context.Background(), &broken, "@news", Options{}); err != nil {
		t.Fatalf("publish with broken image: %v", err)
	}
	if len(ch2.posts) != 1 || len(ch2.uploads) != 0 {
		t.Fatalf("posts=%d uploads=%d", len(ch2.posts), len(ch2.uploads))
	}
}

func TestDecodeDataURI(t *testing.T) {
	ref := "data:image/webp;base64," + base64.StdEncoding.EncodeToString([]byte("RIFF"))
	f, err := decodeDataURI(ref)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "image.webp" || string(f.Data) != "RIFF" {
		t.Fatalf("file = %+v", f)
	}
	if _, err := decodeDataURI("data:image/png,notbase64"); err == nil {
		t.Fatal("expected error for non-base64 data uri")
	}
}

func TestCleanImageName(t *testing.T) {
	tests := []struct {
		url, contentType, want string
	}{
		{"https://i.test/a/photo.JPEG?w=100", "", "photo.jpg"},
		{"https://pbs.twimg.com/media/Fx1?format=png", "image/png", "Fx1.png"},
		{"https://i.test/", "image/gif", "image.gif"},
		{"https://i.test/we ird name.webp", "", "we_ird_name.webp"},
	}
	for _, tt := range tests {
		if got := cleanImageName(tt.url, tt.contentType); got != tt.want {
			t.Errorf("cleanImageName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPublishThreadedExtras(t *testing.T) {
	ch := &fakeChannel{}
	posts := newMemPosts()
	p := New(ch, posts, Config{}, logger.Nop())

	item := newsItem("threaded")
	quizID, err := p.PublishThreadedExtras(context.Background(), &item, "@news")
	if err != nil {
		t.Fatalf("PublishThreadedExtras: %v", err)
	}
	if len(ch.posts) != 3 {
		t.Fatalf("expected primary + 2 replies, got %d", len(ch.posts))
	}
	primary := ch.posts[0]
	if primary.msg.HasQuiz() || primary.parent != "" {
		t.Fatalf("primary must carry no quiz and no parent: %+v", primary)
	}
	for _, reply := range ch.posts[1:] {
		if reply.parent != primary.id {
			t.Fatalf("reply parent = %q, want %q", reply.parent, primary.id)
		}
	}
	if quizID != ch.posts[2].id || quizID == primary.id {
		t.Fatalf("quiz id = %q, want reply id %q", quizID, ch.posts[2].id)
	}
	if rec, err := posts.GetPost(context.Background(), quizID.String()); err != nil || len(rec.Questions) != 1 {
		t.Fatalf("quiz reply not stored: %+v, %v", rec, err)
	}

	// existing primary: only replies are posted
	ch.posts = nil
	if _, err := p.PublishThreadedExtras(context.Background(), &item, "@news"); err != nil {
		t.Fatal(err)
	}
	if len(ch.posts) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(ch.posts))
	}
}

func TestThreadedExtrasIndependent(t *testing.T) {
	ch := &fakeChannel{failPost: func(msg blocks.Message) bool {
		return strings.HasPrefix(msg.FallbackText, "Vocabulary")
	}}
	p := New(ch, nil, Config{}, logger.Nop())
	item := newsItem("partial")
	quizID, err := p.PublishThreadedExtras(context.Background(), &item, "@news")
	if err == nil {
		t.Fatal("expected vocabulary failure to be reported")
	}
	if quizID == "" {
		t.Fatal("quiz reply must still be posted")
	}
}

func TestBulkReportsPerItem(t *testing.T) {
	ch := &fakeChannel{failPost: func(msg blocks.Message) bool {
		return strings.Contains(msg.FallbackText, "fail")
	}}
	p := New(ch, nil, Config{Concurrency: 2}, logger.Nop())

	items := []models.ContentItem{newsItem("one"), newsItem("fail"), newsItem("three")}
	report := p.PostAll(context.Background(), items, "@news")

	if len(report.Results) != 2 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Results[0].Index != 0 || report.Results[1].Index != 2 || report.Failures[0].Index != 1 {
		t.Fatalf("report order = %+v", report)
	}
	if report.Results[0].QuizMessageID != report.Results[0].MessageID {
		t.Fatalf("inline quiz id must equal the primary id: %+v", report.Results[0])
	}

	ch2 := &fakeChannel{}
	p2 := New(ch2, nil, Config{}, logger.Nop())
	tool := models.ContentItem{Category: models.CategoryTools, Title: "tool"}
	replies := p2.PostQuizVocabAsReplies(context.Background(), []models.ContentItem{newsItem("n"), tool}, "@news")
	if len(replies.Results) != 2 || replies.Results[0].QuizMessageID == "" || replies.Results[1].QuizMessageID != "" {
		t.Fatalf("replies report = %+v", replies)
	}
	if len(ch2.posts) != 4 {
		t.Fatalf("expected 4 posts, got %d", len(ch2.posts))
	}

	ch3 := &fakeChannel{}
	p3 := New(ch3, nil, Config{}, logger.Nop())
	extracted := p3.PostExtractedOnly(context.Background(), []models.ContentItem{newsItem("plain")}, "@news")
	if len(extracted.Results) != 1 || ch3.posts[0].msg.HasQuiz() {
		t.Fatalf("extracted-only report = %+v", extracted)
	}
}

func TestBulkAttachmentsReplyToTheirOwnPost(t *testing.T) {
	audioDir := t.TempDir()
	titles := []string{"alpha", "beta", "gamma", "delta"}
	items := make([]models.ContentItem, 0, len(titles))
	for _, title := range titles {
		name := "narration-" + title + ".mp3"
		if err := os.WriteFile(filepath.Join(audioDir, name), []byte(title), 0o644); err != nil {
			t.Fatal(err)
		}
		item := newsItem(title)
		item.AudioRef = "/audio/" + name
		items = append(items, item)
	}

	ch := &fakeChannel{}
	p := New(ch, nil, Config{AudioDir: audioDir, Concurrency: 4}, logger.Nop())
	report := p.PostAll(context.Background(), items, "@news")
	if len(report.Results) != len(titles) {
		t.Fatalf("report = %+v", report)
	}

	primary := make(map[string]channel.MessageID)
	for _, post := range ch.posts {
		primary[post.msg.FallbackText] = post.id
	}
	if len(ch.uploads) != len(titles) {
		t.Fatalf("expected %d uploads, got %d", len(titles), len(ch.uploads))
	}
	for i, file := range ch.uploads {
		title := string(file.Data)
		if ch.parents[i] == "" || ch.parents[i] != primary[title] {
			t.Fatalf("audio for %q replied to %q, want %q", title, ch.parents[i], primary[title])
		}
	}
}

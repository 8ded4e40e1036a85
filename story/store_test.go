package story

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storyYAML = `bot:
  first_chapter: "chapter one"
  help_message: "help text"
  welcome_message: "welcome text"
telegram:
  run_mode: longpoll
`

func writeStory(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newTestStore(t *testing.T, path string, ttl time.Duration) *Store {
	t.Helper()
	s := NewStore(path, ttl, 100)
	t.Cleanup(s.Close)
	return s
}

func TestStoreLoadsDocument(t *testing.T) {
	path := writeStory(t, t.TempDir(), storyYAML)
	s := newTestStore(t, path, time.Hour)

	doc, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chapter one", doc.Bot.FirstChapter)
	assert.Equal(t, "help text", doc.Bot.HelpMessage)
	assert.Equal(t, "welcome text", doc.Bot.WelcomeMessage)
	assert.Equal(t, path, s.Path())
}

func TestStoreReadsOncePerWindow(t *testing.T) {
	path := writeStory(t, t.TempDir(), storyYAML)
	s := newTestStore(t, path, time.Hour)

	for i := 0; i < 50; i++ {
		_, err := s.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(1), s.Loads())
	m := s.Metrics()
	assert.Equal(t, uint64(1), m.Insertions)
}

func TestStoreConcurrentMissesShareOneRead(t *testing.T) {
	path := writeStory(t, t.TempDir(), storyYAML)
	s := newTestStore(t, path, time.Hour)

	release := make(chan struct{})
	s.readFile = func(p string) ([]byte, error) {
		<-release
		return os.ReadFile(p)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Get(context.Background())
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(1), s.Loads())
}

func TestStoreIgnoresFileChangesUntilExpiry(t *testing.T) {
	dir := t.TempDir()
	path := writeStory(t, dir, storyYAML)
	ttl := 150 * time.Millisecond
	s := newTestStore(t, path, ttl)

	doc, err := s.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "chapter one", doc.Bot.FirstChapter)

	writeStory(t, dir, `bot:
  first_chapter: "chapter two"
  help_message: "help text"
  welcome_message: "welcome text"
`)

	doc, err = s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chapter one", doc.Bot.FirstChapter)

	require.Eventually(t, func() bool {
		doc, err := s.Get(context.Background())
		return err == nil && doc.Bot.FirstChapter == "chapter two"
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, uint64(2), s.Loads())
}

func TestStoreReadsDoNotExtendTTL(t *testing.T) {
	dir := t.TempDir()
	path := writeStory(t, dir, storyYAML)
	ttl := 200 * time.Millisecond
	s := newTestStore(t, path, ttl)

	_, err := s.Get(context.Background())
	require.NoError(t, err)

	writeStory(t, dir, `bot:
  first_chapter: "chapter two"
  help_message: "help text"
  welcome_message: "welcome text"
`)
	// keep hitting the slot; hits must not push the expiry forward
	deadline := time.Now().Add(3 * ttl)
	var last string
	for time.Now().Before(deadline) {
		doc, err := s.Get(context.Background())
		require.NoError(t, err)
		last = doc.Bot.FirstChapter
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "chapter two", last)
}

func TestStoreMissingFile(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "missing.yaml"), time.Hour)

	_, err := s.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStoreDoesNotCacheFailures(t *testing.T) {
	dir := t.TempDir()
	path := writeStory(t, dir, "bot: [not, a, mapping")
	s := newTestStore(t, path, time.Hour)

	_, err := s.Get(context.Background())
	require.Error(t, err)

	writeStory(t, dir, storyYAML)
	doc, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chapter one", doc.Bot.FirstChapter)
	assert.Equal(t, uint64(2), s.Loads())
}

func TestStoreEmptyDocument(t *testing.T) {
	path := writeStory(t, t.TempDir(), "telegram:\n  run_mode: longpoll\n")
	s := newTestStore(t, path, time.Hour)

	err := s.Warm(context.Background())
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestStoreRejectsPartialDocument(t *testing.T) {
	path := writeStory(t, t.TempDir(), `bot:
  first_chapter: "chapter one"
  welcome_message: "  "
`)
	s := newTestStore(t, path, time.Hour)

	err := s.Warm(context.Background())
	require.ErrorIs(t, err, ErrEmptyDocument)
	assert.Contains(t, err.Error(), "bot.help_message")
	assert.Contains(t, err.Error(), "bot.welcome_message")
	assert.NotContains(t, err.Error(), "bot.first_chapter")
}

func TestStoreCancelledContext(t *testing.T) {
	path := writeStory(t, t.TempDir(), storyYAML)
	s := newTestStore(t, path, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Loads())
}

func TestStoreCloseTwice(t *testing.T) {
	s := NewStore("unused.yaml", time.Hour, 1)
	s.Close()
	s.Close()
}

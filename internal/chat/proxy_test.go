package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type recordingModel struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	reply    string
	err      error
}

func (m *recordingModel) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model, m.contents, m.config = model, contents, config
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(m.reply, genai.RoleModel)}},
	}, nil
}

func text(c *genai.Content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func TestReplyMapsHistory(t *testing.T) {
	m := &recordingModel{reply: "We build apps."}
	p := NewProxy(m, "", nil)

	got, err := p.Reply(context.Background(), []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "bot", Content: "anything else?"},
		{Role: "user", Content: "What do you do?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "We build apps.", got)
	assert.Equal(t, DefaultModel, m.model)

	require.Len(t, m.contents, 4)
	roles := []string{}
	for _, c := range m.contents {
		roles = append(roles, string(c.Role))
	}
	assert.Equal(t, []string{"user", "model", "model", "user"}, roles)
	assert.Equal(t, "What do you do?", text(m.contents[3]))
	require.NotNil(t, m.config.SystemInstruction)
	assert.Contains(t, text(m.config.SystemInstruction), "Nexon Inc")
}

func TestReplyShortMode(t *testing.T) {
	m := &recordingModel{reply: "ok"}
	p := NewProxy(m, "custom", nil)
	_, err := p.Reply(context.Background(), []Message{{Role: "user", Content: "Give me a BRIEF overview"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", m.model)
	assert.Equal(t, "Give me a BRIEF overview"+shortSuffix, text(m.contents[0]))

	assert.True(t, WantsShort("please summarize"))
	assert.False(t, WantsShort("tell me everything"))
	assert.Equal(t, "tell me everything", Prompt("tell me everything"))
}

func TestReplyErrors(t *testing.T) {
	p, err := NewGeminiProxy(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.False(t, p.Configured())
	_, err = p.Reply(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)

	_, err = NewProxy(&recordingModel{}, "", nil).Reply(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMessages)

	boom := errors.New("quota exceeded")
	_, err = NewProxy(&recordingModel{err: boom}, "", nil).Reply(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.ErrorIs(t, err, boom)
}

func TestGeminiProxyAgainstFakeEndpoint(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello from Nexon"}]}}]}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProxy(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	require.True(t, p.Configured())

	got, err := p.Reply(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello from Nexon", got)
	assert.Contains(t, path, DefaultModel+":generateContent")
	raw, _ := json.Marshal(body)
	assert.Contains(t, string(raw), "Nexon Inc")
}

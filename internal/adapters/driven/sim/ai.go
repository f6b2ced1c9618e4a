package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
)

// Ensure AI implements the interfaces.
var (
	_ driven.AIBackend        = (*AI)(nil)
	_ driven.Credentialed     = (*AI)(nil)
	_ driven.PromptStoreAware = (*AI)(nil)
)

// AI streams scripted responses word by word, each request on its own
// goroutine. Cancelled requests stop emitting at the next word.
type AI struct {
	responses map[domain.ActionType]Response
	delay     time.Duration

	mu        sync.Mutex
	prompts   driven.PromptStore
	cancelled map[string]bool
	invoked   []Invocation
	apiKey    string
	wg        sync.WaitGroup
	inFlight  int
}

// Invocation records one request the backend received.
type Invocation struct {
	RequestID  string
	ActionType domain.ActionType
	Prompt     string
	Metadata   map[string]string
}

// NewAI creates an AI simulator. Actions without a scripted response
// answer with a canned sentence naming the action.
func NewAI(responses []Response, chunkDelay time.Duration) *AI {
	a := &AI{
		responses: make(map[domain.ActionType]Response, len(responses)),
		delay:     chunkDelay,
		cancelled: make(map[string]bool),
	}
	for _, r := range responses {
		a.responses[domain.ActionType(r.Action)] = r
	}
	return a
}

// SetPromptStore sets the templates used to render prompts.
func (a *AI) SetPromptStore(store driven.PromptStore) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = store
}

// SetAPIKey records the key. The simulator accepts any key.
func (a *AI) SetAPIKey(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apiKey = key
	return nil
}

// APIKey returns the last key set.
func (a *AI) APIKey() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.apiKey
}

// Invoke starts streaming the scripted response for the request.
func (a *AI) Invoke(ctx context.Context, req driven.InvokeRequest, sink driven.AISink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, ok := a.responses[req.ActionType]
	if !ok {
		resp = Response{Text: fmt.Sprintf("No scripted %s for this meeting.", req.ActionType)}
	}

	prompt, err := a.render(req)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.invoked = append(a.invoked, Invocation{
		RequestID:  req.RequestID,
		ActionType: req.ActionType,
		Prompt:     prompt,
		Metadata:   req.Metadata,
	})
	a.inFlight++
	a.wg.Add(1)
	a.mu.Unlock()

	go a.stream(req.RequestID, resp, sink)
	return nil
}

// Cancel stops a request.
func (a *AI) Cancel(requestID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled[requestID] = true
}

// Invocations returns the requests received so far.
func (a *AI) Invocations() []Invocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Invocation(nil), a.invoked...)
}

// Idle reports whether no request is streaming.
func (a *AI) Idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight == 0
}

// Wait blocks until every started request finished streaming.
func (a *AI) Wait() {
	a.wg.Wait()
}

func (a *AI) render(req driven.InvokeRequest) (string, error) {
	a.mu.Lock()
	store := a.prompts
	a.mu.Unlock()

	template := "%s"
	if store != nil {
		t, err := store.Load(req.ActionType)
		if err != nil {
			return "", fmt.Errorf("load %s prompt: %w", req.ActionType, err)
		}
		template = t
	}
	return renderPrompt(template, req.Context), nil
}

func (a *AI) stream(id string, resp Response, sink driven.AISink) {
	defer func() {
		a.mu.Lock()
		a.inFlight--
		delete(a.cancelled, id)
		a.mu.Unlock()
		a.wg.Done()
	}()

	if !a.pause(id) {
		return
	}
	sink.StreamStart(id)

	words := strings.Fields(resp.Text)
	for i, w := range words {
		if !a.pause(id) {
			return
		}
		if i < len(words)-1 {
			w += " "
		}
		sink.StreamChunk(id, w)
		if resp.Error != "" {
			sink.Error(id, errors.New(resp.Error))
			return
		}
	}
	if !a.pause(id) {
		return
	}
	sink.StreamEnd(id, resp.Text)
}

// pause waits one chunk delay and reports whether the request is still wanted.
func (a *AI) pause(id string) bool {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.cancelled[id]
}

// renderPrompt fills a template with the snapshot's transcript and key
// points. A template without a placeholder gets the context appended.
func renderPrompt(template string, snapshot *domain.ContextSnapshot) string {
	var b strings.Builder
	b.WriteString(snapshot.Text())
	if snapshot != nil && len(snapshot.KeyPoints) > 0 {
		b.WriteString("\n\nKey points:\n")
		for _, kp := range snapshot.KeyPoints {
			b.WriteString("- ")
			b.WriteString(kp.Text)
			b.WriteString("\n")
		}
	}
	meeting := strings.TrimSpace(b.String())

	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", meeting, 1)
	}
	return template + "\n\n" + meeting
}

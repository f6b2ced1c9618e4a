package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/pubsub"
)

// printer writes session events to a terminal as they happen.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	styles   styles
	interims bool
	closed   bool
}

func newPrinter(out io.Writer, interims bool) *printer {
	return &printer{out: out, styles: newStyles(), interims: interims}
}

// attach subscribes the printer to every event stream and returns a
// function that detaches it. Nothing is written once detach returns.
func (p *printer) attach(events driving.EventSource) pubsub.Unsubscribe {
	unsubs := []pubsub.Unsubscribe{
		events.OnSession(p.session),
		events.OnTranscript(p.transcript),
		events.OnKeyPoint(p.keyPoint),
		events.OnSuggestion(p.suggestion),
		events.OnStatus(p.status),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
	}
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	fmt.Fprintln(p.out, s)
}

func (p *printer) session(ev domain.SessionEvent) {
	switch ev.Kind {
	case domain.SessionEventStarted:
		p.println(p.styles.Title.Render("Session " + ev.Session.ID + " started"))
	case domain.SessionEventEnded:
		p.println(p.styles.Title.Render(fmt.Sprintf("Session %s ended after %s",
			ev.Session.ID, ev.Session.Duration(time.Now()).Round(time.Millisecond))))
	default:
		p.println(p.styles.Status.Render("Session " + string(ev.Kind)))
	}
}

func (p *printer) transcript(ev domain.TranscriptEvent) {
	seg := ev.Segment
	source := p.styles.Source.Render("[" + seg.Source.String() + "]")
	if seg.IsFinal {
		p.println(source + " " + seg.Text)
		return
	}
	if p.interims {
		p.println(source + " " + p.styles.Interim.Render(seg.Text+" ..."))
	}
}

func (p *printer) keyPoint(kp domain.KeyPoint) {
	p.println(p.styles.KeyPoint.Render("* Key point: " + kp.Text))
}

func (p *printer) suggestion(ev domain.SuggestionEvent) {
	switch ev.Kind {
	case domain.SuggestionResult:
		label := fmt.Sprintf("> %s (%s):", ev.ActionType, ev.Origin)
		p.println(p.styles.Action.Render(label) + " " + ev.Result)
	case domain.SuggestionError:
		p.println(p.styles.Error.Render(fmt.Sprintf("! %s failed (%s): %v", ev.ActionType, ev.ErrorKind, ev.Err)))
	}
}

func (p *printer) status(ev domain.StatusEvent) {
	line := string(ev.Component) + ": " + ev.State
	if ev.Source != "" {
		line += " (" + ev.Source.String() + ")"
	}
	if ev.Message != "" {
		line += " " + ev.Message
	}
	if ev.Err != nil {
		p.println(p.styles.Warning.Render(line + ": " + ev.Err.Error()))
		return
	}
	p.println(p.styles.Status.Render(line))
}

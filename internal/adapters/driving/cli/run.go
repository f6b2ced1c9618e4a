package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley/internal/adapters/driven/config/file"
	"github.com/custodia-labs/parley/internal/adapters/driven/sim"
	"github.com/custodia-labs/parley/internal/adapters/driving/mcp"
	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/logger"
)

var (
	runJSON     bool
	runInterims bool
	runPrompts  string
	runTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.toml>",
	Short: "Replay a scripted meeting through the engine",
	Long: `Replay a scripted meeting described by a TOML scenario file.

The scenario drives simulated audio capture, speech-to-text and AI
providers through the real session engine. Transcript, key points and
suggestions are printed as they arrive; the final context is printed
when the scenario finishes.

Examples:
  parley run standup.toml
  parley run standup.toml --json
  parley run standup.toml --prompts ./prompts --interims`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final context as JSON instead of live events")
	runCmd.Flags().BoolVar(&runInterims, "interims", false, "print interim transcript revisions")
	runCmd.Flags().StringVar(&runPrompts, "prompts", "", "directory with <action>.txt prompt templates")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", time.Minute, "give up if the scenario has not finished")
	rootCmd.AddCommand(runCmd)
}

// suggestionRecord is one finished suggestion request.
type suggestionRecord struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Origin    string `json:"origin"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// runOutput is the JSON document printed by run --json.
type runOutput struct {
	Scenario    string             `json:"scenario,omitempty"`
	Context     mcp.SnapshotOutput `json:"context"`
	Suggestions []suggestionRecord `json:"suggestions"`
	Dropped     uint64             `json:"chunks_dropped"`
	Late        uint64             `json:"late_results"`
}

func runScenario(cmd *cobra.Command, args []string) error {
	if newSession == nil {
		return errors.New("session factory not configured")
	}

	scn, err := sim.LoadScenario(args[0])
	if err != nil {
		return err
	}

	capture, stt, ai := scn.Providers()
	prompts := promptStore
	if runPrompts != "" {
		ps, err := file.NewPromptStore(runPrompts)
		if err != nil {
			return fmt.Errorf("open prompts: %w", err)
		}
		prompts = ps
	}
	if prompts != nil {
		ai.SetPromptStore(prompts)
	}

	var override *domain.AutoSuggestConfig
	if scn.AutoSuggest != nil {
		base := domain.DefaultAutoSuggestConfig()
		if settingsService != nil {
			if settings, err := settingsService.Get(); err == nil {
				base = settings.AutoSuggest
			}
		}
		cfg, err := scn.AutoSuggestConfig(base)
		if err != nil {
			return err
		}
		override = &cfg
	}

	session, err := newSession(Providers{Capture: capture, STT: stt, AI: ai}, override)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if !runJSON {
		detach := newPrinter(cmd.OutOrStdout(), runInterims).attach(session.Events())
		defer detach()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	r := newReplayer(scn, session, stt, ai)
	if err := r.run(ctx); err != nil {
		return err
	}

	if runJSON {
		return outputRunJSON(cmd, scn, r)
	}
	snap := session.Snapshot(domain.SnapshotOptions{FinalOnly: true})
	cmd.Println()
	cmd.Printf("%d final segments, %d key points, %d suggestions\n",
		len(snap.Segments), len(snap.KeyPoints), len(r.records()))
	return nil
}

func outputRunJSON(cmd *cobra.Command, scn *sim.Scenario, r *replayer) error {
	d := r.session.Diagnostics()
	out := runOutput{
		Scenario:    scn.Name,
		Context:     mcp.NewSnapshotOutput(r.session.Snapshot(domain.SnapshotOptions{})),
		Suggestions: r.records(),
		Dropped:     d.ChunksDropped,
		Late:        d.LateResults,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// replayer drives one scenario: it starts the session, fires the scripted
// triggers and key points as finals arrive, and stops the session once
// the transcript is complete and no request is streaming.
type replayer struct {
	scn     *sim.Scenario
	session driving.SessionService
	stt     *sim.STT
	ai      *sim.AI
	log     *logger.Logger

	finals         atomic.Int64
	firedTriggers  []bool
	firedKeyPoints []bool

	mu          sync.Mutex
	suggestions []suggestionRecord
}

func newReplayer(scn *sim.Scenario, session driving.SessionService, stt *sim.STT, ai *sim.AI) *replayer {
	return &replayer{
		scn:            scn,
		session:        session,
		stt:            stt,
		ai:             ai,
		log:            logger.For("run"),
		firedTriggers:  make([]bool, len(scn.Triggers)),
		firedKeyPoints: make([]bool, len(scn.KeyPoints)),
	}
}

func (r *replayer) run(ctx context.Context) error {
	events := r.session.Events()
	unsubs := []func(){
		events.OnTranscript(func(ev domain.TranscriptEvent) {
			if ev.Segment.IsFinal {
				r.finals.Add(1)
			}
		}),
		events.OnSuggestion(r.record),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	if _, err := r.session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		r.step(ctx)
		if r.finished() {
			break
		}
		select {
		case <-ctx.Done():
			_, _ = r.session.Stop(context.Background())
			return fmt.Errorf("scenario did not finish: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	if _, err := r.session.Stop(ctx); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	r.ai.Wait()
	return nil
}

// due reports whether an item scheduled after n finals may run. Items
// scheduled past the end of the transcript run once it is complete.
func (r *replayer) due(afterFinals int) bool {
	if total := r.scn.FinalCount(); afterFinals > total {
		afterFinals = total
	}
	return r.finals.Load() >= int64(afterFinals)
}

func (r *replayer) step(ctx context.Context) {
	for i, kp := range r.scn.KeyPoints {
		if r.firedKeyPoints[i] || !r.due(kp.AfterFinals) {
			continue
		}
		r.firedKeyPoints[i] = true
		if _, err := r.session.AddKeyPoint(kp.Text, map[string]string{"origin": "scenario"}); err != nil {
			r.log.Warn("key point %d: %v", i+1, err)
		}
	}

	for i, t := range r.scn.Triggers {
		if r.firedTriggers[i] || !r.due(t.AfterFinals) {
			continue
		}
		r.firedTriggers[i] = true
		action, err := domain.ParseActionType(t.Action)
		if err != nil {
			r.log.Warn("trigger %d: %v", i+1, err)
			continue
		}
		id, err := r.session.TriggerAction(ctx, action, maps.Clone(t.Metadata))
		if err != nil {
			r.log.Warn("trigger %d: %v", i+1, err)
			continue
		}
		r.log.Debug("trigger %d submitted as %s", i+1, id)
	}
}

func (r *replayer) finished() bool {
	if !r.session.State().IsRunning() {
		return true
	}
	if !r.stt.Done() || r.finals.Load() < int64(r.scn.FinalCount()) {
		return false
	}
	for _, fired := range r.firedTriggers {
		if !fired {
			return false
		}
	}
	for _, fired := range r.firedKeyPoints {
		if !fired {
			return false
		}
	}
	return len(r.session.Diagnostics().LiveRequests) == 0 && r.ai.Idle()
}

func (r *replayer) record(ev domain.SuggestionEvent) {
	rec := suggestionRecord{
		RequestID: ev.RequestID,
		Action:    ev.ActionType.String(),
		Origin:    string(ev.Origin),
	}
	switch ev.Kind {
	case domain.SuggestionResult:
		rec.Result = ev.Result
	case domain.SuggestionError:
		rec.Error = fmt.Sprintf("%s: %v", ev.ErrorKind, ev.Err)
	default:
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions = append(r.suggestions, rec)
}

func (r *replayer) records() []suggestionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]suggestionRecord, len(r.suggestions))
	copy(out, r.suggestions)
	return out
}

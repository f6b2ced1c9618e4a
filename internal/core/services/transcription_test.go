package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley/internal/core/domain"
)

func newTestCoordinator(t *testing.T) (*TranscriptionCoordinator, *ContextStore, *mockSTT, *eventLog[domain.StatusEvent]) {
	t.Helper()
	clock := NewManualClock(t0)
	store := NewContextStore(clock)
	stt := &mockSTT{}
	statuses := &eventLog[domain.StatusEvent]{}
	coord := NewTranscriptionCoordinator(stt, store, clock, statuses.add)
	require.NoError(t, coord.Open(context.Background(), nil))
	return coord, store, stt, statuses
}

func sttResult(key, text string, final bool) domain.STTResult {
	return domain.STTResult{UtteranceKey: key, Text: text, IsFinal: final, Timestamp: t0, Source: domain.SourceMic}
}

func TestTranscriptionCoordinator_InterimsReplaceInPlace(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)

	require.NoError(t, coord.HandleResult(sttResult("u1", "Hel", false)))
	require.NoError(t, coord.HandleResult(sttResult("u1", "Hello", false)))
	require.NoError(t, coord.HandleResult(sttResult("u2", "wor", false)))
	require.NoError(t, coord.HandleResult(sttResult("u1", "Hello", true)))

	snap := store.Snapshot(domain.SnapshotOptions{})
	require.Len(t, snap.Segments, 2)
	assert.Equal(t, "Hello", snap.Segments[0].Text)
	assert.True(t, snap.Segments[0].IsFinal)
	assert.Equal(t, "wor", snap.Segments[1].Text)
	assert.False(t, snap.Segments[1].IsFinal)
}

func TestTranscriptionCoordinator_ResultAfterFinalIsDropped(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	require.NoError(t, coord.HandleResult(sttResult("u1", "Hello", true)))

	err := coord.HandleResult(sttResult("u1", "Hello there", false))

	assert.ErrorIs(t, err, domain.ErrOutOfOrderResult)
	snap := store.Snapshot(domain.SnapshotOptions{})
	require.Len(t, snap.Segments, 1)
	assert.Equal(t, "Hello", snap.Segments[0].Text)
	_, late := coord.Counters()
	assert.Equal(t, uint64(1), late)
}

func TestTranscriptionCoordinator_OneFinalPerUtterance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		coord, store, _, _ := newTestCoordinator(t)
		keys := []string{"a", "b", "c", "d"}
		for i := 0; i < 200; i++ {
			key := keys[rng.Intn(len(keys))]
			final := rng.Intn(5) == 0
			_ = coord.HandleResult(sttResult(key, fmt.Sprintf("%s-%d", key, i), final))
		}

		finals := map[string]int{}
		interims := map[string]int{}
		for _, seg := range store.Snapshot(domain.SnapshotOptions{}).Segments {
			if seg.IsFinal {
				finals[seg.UtteranceKey]++
			} else {
				interims[seg.UtteranceKey]++
			}
		}
		for key, n := range finals {
			assert.Equal(t, 1, n, "round %d: utterance %s", round, key)
			assert.Zero(t, interims[key], "round %d: utterance %s kept an interim", round, key)
		}
		for key, n := range interims {
			assert.Equal(t, 1, n, "round %d: utterance %s", round, key)
		}
	}
}

func TestTranscriptionCoordinator_DisconnectFlushesInterims(t *testing.T) {
	coord, store, _, statuses := newTestCoordinator(t)
	require.NoError(t, coord.HandleResult(sttResult("u1", "Hello", true)))
	require.NoError(t, coord.HandleResult(sttResult("u2", "wor", false)))

	coord.HandleStatus(domain.ConnectionDisconnected)

	assert.Equal(t, domain.ConnectionLost, coord.State())
	snap := store.Snapshot(domain.SnapshotOptions{})
	require.Len(t, snap.Segments, 2)
	assert.True(t, snap.Segments[1].IsFinal)
	assert.Equal(t, "wor", snap.Segments[1].Text)

	events := statuses.all()
	last := events[len(events)-1]
	assert.Equal(t, string(domain.ConnectionLost), last.State)
	assert.ErrorIs(t, last.Err, domain.ErrProviderDisconnected)
}

func TestTranscriptionCoordinator_DropsWhileDisconnected(t *testing.T) {
	coord, store, stt, _ := newTestCoordinator(t)
	coord.HandleStatus(domain.ConnectionDisconnected)

	err := coord.Submit(testChunk(domain.SourceMic, 1))
	assert.ErrorIs(t, err, domain.ErrProviderDisconnected)
	assert.ErrorIs(t, coord.HandleResult(sttResult("u1", "ghost", true)), domain.ErrOutOfOrderResult)

	assert.Zero(t, stt.submittedCount())
	segs, _ := store.Len()
	assert.Zero(t, segs)
	dropped, late := coord.Counters()
	assert.Equal(t, uint64(1), dropped)
	assert.Equal(t, uint64(1), late)
}

func TestTranscriptionCoordinator_ReconnectOpensNewNamespace(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	require.NoError(t, coord.HandleResult(sttResult("utt-1", "before", true)))

	coord.HandleStatus(domain.ConnectionDisconnected)
	coord.HandleStatus(domain.ConnectionConnected)
	require.NoError(t, coord.HandleResult(sttResult("utt-1", "after", true)))

	assert.Equal(t, 1, coord.Epoch())
	snap := store.Snapshot(domain.SnapshotOptions{})
	require.Len(t, snap.Segments, 2)
	assert.Equal(t, "before", snap.Segments[0].Text)
	assert.Equal(t, "after", snap.Segments[1].Text)
	assert.NotEqual(t, snap.Segments[0].UtteranceKey, snap.Segments[1].UtteranceKey)
}

func TestTranscriptionCoordinator_ReconnectPrunesFinalUtterances(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	require.NoError(t, coord.HandleResult(sttResult("utt-1", "done", true)))
	require.NoError(t, coord.HandleResult(sttResult("utt-2", "half", false)))
	assert.Len(t, coord.utterances, 2)

	coord.HandleStatus(domain.ConnectionDisconnected)
	coord.HandleStatus(domain.ConnectionConnected)
	assert.Empty(t, coord.utterances)

	require.NoError(t, coord.HandleResult(sttResult("utt-3", "fresh", false)))
	assert.Len(t, coord.utterances, 1)

	snap := store.Snapshot(domain.SnapshotOptions{})
	require.Len(t, snap.Segments, 3)
	assert.True(t, snap.Segments[1].IsFinal, "interim flushed on disconnect")
	assert.Equal(t, "fresh", snap.Segments[2].Text)
}

func TestTranscriptionCoordinator_RepeatedStatusIsIgnored(t *testing.T) {
	coord, _, _, statuses := newTestCoordinator(t)
	before := statuses.count()

	coord.HandleStatus(domain.ConnectionConnected)
	coord.HandleStatus(domain.ConnectionDisconnected)
	coord.HandleStatus(domain.ConnectionLost)

	assert.Equal(t, before+1, statuses.count())
	assert.Zero(t, coord.Epoch())
}

func TestTranscriptionCoordinator_OpenFailure(t *testing.T) {
	clock := NewManualClock(t0)
	stt := &mockSTT{openErr: errors.New("dial tcp: refused")}
	statuses := &eventLog[domain.StatusEvent]{}
	coord := NewTranscriptionCoordinator(stt, NewContextStore(clock), clock, statuses.add)

	err := coord.Open(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrProviderDisconnected)
	assert.Equal(t, domain.ConnectionLost, coord.State())
	require.Equal(t, 1, statuses.count())
	assert.Equal(t, string(domain.ConnectionLost), statuses.all()[0].State)

	coord.HandleStatus(domain.ConnectionConnected)
	assert.Equal(t, domain.ConnectionConnected, coord.State())
}

func TestTranscriptionCoordinator_SubmitErrorIsCounted(t *testing.T) {
	coord, _, stt, _ := newTestCoordinator(t)
	stt.submitErr = errors.New("buffer full")

	assert.Error(t, coord.Submit(testChunk(domain.SourceMic, 1)))
	dropped, _ := coord.Counters()
	assert.Equal(t, uint64(1), dropped)
}

func TestTranscriptionCoordinator_HandleErrorKeepsLink(t *testing.T) {
	coord, _, _, statuses := newTestCoordinator(t)

	coord.HandleError(errors.New("quota warning"))

	assert.Equal(t, domain.ConnectionConnected, coord.State())
	events := statuses.all()
	assert.Equal(t, "error", events[len(events)-1].State)
	assert.Equal(t, domain.ComponentTranscription, events[len(events)-1].Component)
}

func TestTranscriptionCoordinator_FinalEndTimestamp(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	r := sttResult("u1", "Hello", true)
	r.Timestamp = t0.Add(3 * time.Second)

	require.NoError(t, coord.HandleResult(r))

	seg := store.Snapshot(domain.SnapshotOptions{}).Segments[0]
	require.NotNil(t, seg.End)
	assert.Equal(t, t0.Add(3*time.Second), *seg.End)
}

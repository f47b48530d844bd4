// ABOUTME: Standard MIDI File playback through a Sender
// ABOUTME: Merges tracks by time and sends words on schedule
package sequencer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/omnimidi/kdmapi-go/pkg/midiword"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
)

// Sender accepts packed short MIDI messages.
type Sender interface {
	SendDirectData(data uint32)
}

// Event is one scheduled short message.
type Event struct {
	At    time.Duration // offset from the start of playback
	Track int
	Word  uint32
}

// Result summarizes a playback run.
type Result struct {
	Events   int
	Duration time.Duration
	Stopped  bool // cancelled before the last event
}

// Load reads a Standard MIDI File and returns its short messages merged
// across tracks in time order. Meta and system exclusive events are skipped.
func Load(r io.Reader) ([]Event, error) {
	var events []Event
	rd := smf.ReadTracksFrom(r)
	rd.Do(func(ev smf.TrackEvent) {
		if ev.Message.IsMeta() {
			return
		}
		word, err := midiword.Pack(midi.Message(ev.Message))
		if err != nil {
			return
		}
		events = append(events, Event{
			At:    time.Duration(ev.AbsMicroSeconds) * time.Microsecond,
			Track: ev.TrackNo,
			Word:  word,
		})
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("failed to read midi file: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At < events[j].At
	})
	return events, nil
}

// LoadFile reads the Standard MIDI File at path.
func LoadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open midi file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Player sends events to a Sender at their scheduled offsets.
type Player struct {
	sender Sender
	logger *zap.Logger

	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPlayer creates a player that sends to sender.
func NewPlayer(sender Sender) *Player {
	return &Player{
		sender: sender,
		logger: zap.NewNop(),
		sleep:  sleepContext,
	}
}

// SetLogger replaces the player's logger.
func (p *Player) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Play sends events in order, waiting between them. If ctx is cancelled
// playback stops, all notes are silenced and ctx's error is returned.
func (p *Player) Play(ctx context.Context, events []Event) (Result, error) {
	var (
		res  Result
		last time.Duration
	)

	for _, ev := range events {
		if wait := ev.At - last; wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				p.silence()
				res.Stopped = true
				p.logger.Info("playback stopped", zap.Int("events", res.Events), zap.Duration("at", last))
				return res, err
			}
			last = ev.At
		}

		p.sender.SendDirectData(ev.Word)
		res.Events++
		res.Duration = ev.At
	}

	p.logger.Debug("playback finished", zap.Int("events", res.Events), zap.Duration("duration", res.Duration))
	return res, nil
}

// silence sends all notes off on every channel.
func (p *Player) silence() {
	for _, w := range midiword.Panic() {
		p.sender.SendDirectData(w)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

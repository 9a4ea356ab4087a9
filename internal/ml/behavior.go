package ml

import (
	"math"
	"sync"
	"time"

	"github.com/mikey/email-guardian/internal/core"
)

// profileEvent is one observed send for a sender
type profileEvent struct {
	timestamp     time.Time
	hour          int
	day           time.Weekday
	recipient     string
	subjectLength int
}

// SenderProfile is the time-windowed send history for one sender. Events
// are kept in arrival order; eviction drops the oldest first. Only the
// pipeline worker handling a sender's events writes to its profile.
type SenderProfile struct {
	Email  string
	events []profileEvent
}

// ProfileStore owns the per-sender behavior profiles for a run. The window
// and the per-sender cap bound memory explicitly instead of growing without
// limit.
type ProfileStore struct {
	mu        sync.Mutex
	profiles  map[string]*SenderProfile
	window    time.Duration
	maxEvents int
}

// NewProfileStore creates a profile store with a history window in days and
// a hard per-sender event cap.
func NewProfileStore(windowDays, maxEventsPerSender int) *ProfileStore {
	return &ProfileStore{
		profiles:  make(map[string]*SenderProfile),
		window:    time.Duration(windowDays) * 24 * time.Hour,
		maxEvents: maxEventsPerSender,
	}
}

// Record adds one send event to the sender's profile and evicts anything
// outside the window or beyond the cap.
func (s *ProfileStore) Record(sender string, ts time.Time, recipient string, subjectLength int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[sender]
	if !ok {
		profile = &SenderProfile{Email: sender}
		s.profiles[sender] = profile
	}

	profile.events = append(profile.events, profileEvent{
		timestamp:     ts,
		hour:          ts.Hour(),
		day:           ts.Weekday(),
		recipient:     recipient,
		subjectLength: subjectLength,
	})

	profile.evict(ts.Add(-s.window), s.maxEvents)
}

// EventCount returns the number of retained events for a sender
func (s *ProfileStore) EventCount(sender string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile, ok := s.profiles[sender]; ok {
		return len(profile.events)
	}
	return 0
}

// evict drops events older than the cutoff, then trims to the cap oldest
// first. Events arrive in order, so both cuts come off the front.
func (p *SenderProfile) evict(cutoff time.Time, maxEvents int) {
	firstValid := 0
	for firstValid < len(p.events) && p.events[firstValid].timestamp.Before(cutoff) {
		firstValid++
	}
	if firstValid > 0 {
		p.events = append(p.events[:0], p.events[firstValid:]...)
	}

	if maxEvents > 0 && len(p.events) > maxEvents {
		p.events = append(p.events[:0], p.events[len(p.events)-maxEvents:]...)
	}
}

// Features derives the behavioral anomaly features for a sender at the
// given time. A sender with no history scores zero everywhere.
func (s *ProfileStore) Features(sender string, now time.Time) core.FeatureVector {
	s.mu.Lock()
	defer s.mu.Unlock()

	fv := core.FeatureVector{
		FeatFrequencyAnomaly:   0,
		FeatTimingAnomaly:      0,
		FeatPatternDeviation:   0,
		FeatRecipientDiversity: 0,
	}

	profile, ok := s.profiles[sender]
	if !ok || len(profile.events) == 0 {
		return fv
	}

	fv[FeatFrequencyAnomaly] = profile.frequencyAnomaly(now)
	fv[FeatTimingAnomaly] = profile.timingAnomaly(now.Hour())
	fv[FeatPatternDeviation] = profile.patternDeviation()
	fv[FeatRecipientDiversity] = profile.recipientDiversity()

	return fv
}

// frequencyAnomaly is the z-score of today's send count against the daily
// count distribution over the window, squashed to [0, 1]. Only unusually
// high activity registers.
func (p *SenderProfile) frequencyAnomaly(now time.Time) float64 {
	counts := make(map[string]int)
	for _, ev := range p.events {
		counts[ev.timestamp.Format("2006-01-02")]++
	}
	if len(counts) < 2 {
		return 0
	}

	today := float64(counts[now.Format("2006-01-02")])

	values := make([]float64, 0, len(counts))
	for _, c := range counts {
		values = append(values, float64(c))
	}
	mean, std := meanStd(values)
	if std == 0 {
		return 0
	}

	z := (today - mean) / std
	return clamp01(z / 3)
}

// timingAnomaly is one minus the historical probability of sending at the
// current hour
func (p *SenderProfile) timingAnomaly(hour int) float64 {
	hits := 0
	for _, ev := range p.events {
		if ev.hour == hour {
			hits++
		}
	}
	return 1 - float64(hits)/float64(len(p.events))
}

// patternDeviation is the absolute z-score of the latest subject length
// against the sender's history, squashed to [0, 1]
func (p *SenderProfile) patternDeviation() float64 {
	if len(p.events) < 2 {
		return 0
	}

	values := make([]float64, len(p.events))
	for i, ev := range p.events {
		values[i] = float64(ev.subjectLength)
	}
	mean, std := meanStd(values)
	if std == 0 {
		return 0
	}

	latest := values[len(values)-1]
	return clamp01(math.Abs(latest-mean) / std / 3)
}

// recipientDiversity is unique recipients over total sends
func (p *SenderProfile) recipientDiversity() float64 {
	unique := make(map[string]struct{}, len(p.events))
	for _, ev := range p.events {
		unique[ev.recipient] = struct{}{}
	}
	return float64(len(unique)) / float64(len(p.events))
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

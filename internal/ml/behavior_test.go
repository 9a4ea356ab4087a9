package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfileWindowEviction(t *testing.T) {
	store := NewProfileStore(30, 2000)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	store.Record("alice@corp.com", now.AddDate(0, 0, -40), "bob@corp.com", 20)
	store.Record("alice@corp.com", now.AddDate(0, 0, -5), "bob@corp.com", 20)
	store.Record("alice@corp.com", now, "carol@corp.com", 20)

	assert.Equal(t, 2, store.EventCount("alice@corp.com"))
}

func TestProfileEventCap(t *testing.T) {
	store := NewProfileStore(30, 5)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		store.Record("alice@corp.com", now.Add(time.Duration(i)*time.Minute), "bob@corp.com", 20)
	}

	assert.Equal(t, 5, store.EventCount("alice@corp.com"))
}

func TestFeaturesUnknownSender(t *testing.T) {
	store := NewProfileStore(30, 2000)

	fv := store.Features("ghost@corp.com", time.Now())

	assert.Zero(t, fv[FeatFrequencyAnomaly])
	assert.Zero(t, fv[FeatTimingAnomaly])
	assert.Zero(t, fv[FeatPatternDeviation])
	assert.Zero(t, fv[FeatRecipientDiversity])
}

func TestFrequencyAnomalySpike(t *testing.T) {
	store := NewProfileStore(30, 2000)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	// One email a day for ten days, then a burst today
	for d := 10; d >= 1; d-- {
		store.Record("alice@corp.com", now.AddDate(0, 0, -d), "bob@corp.com", 20)
	}
	for i := 0; i < 20; i++ {
		store.Record("alice@corp.com", now.Add(time.Duration(i)*time.Minute), "bob@corp.com", 20)
	}

	fv := store.Features("alice@corp.com", now)
	assert.Greater(t, fv[FeatFrequencyAnomaly], 0.5)
}

func TestTimingAnomalyUnusualHour(t *testing.T) {
	store := NewProfileStore(30, 2000)
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		store.Record("alice@corp.com", base.AddDate(0, 0, -i), "bob@corp.com", 20)
	}

	atNine := store.Features("alice@corp.com", base)
	atThree := store.Features("alice@corp.com", time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC))

	assert.Zero(t, atNine[FeatTimingAnomaly])
	assert.Equal(t, 1.0, atThree[FeatTimingAnomaly])
}

func TestRecipientDiversity(t *testing.T) {
	store := NewProfileStore(30, 2000)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	store.Record("alice@corp.com", now, "bob@corp.com", 20)
	store.Record("alice@corp.com", now, "bob@corp.com", 20)
	store.Record("alice@corp.com", now, "carol@corp.com", 20)
	store.Record("alice@corp.com", now, "dave@corp.com", 20)

	fv := store.Features("alice@corp.com", now)
	assert.InDelta(t, 0.75, fv[FeatRecipientDiversity], 1e-9)
}

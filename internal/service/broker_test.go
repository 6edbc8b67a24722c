package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/mockup-studio/internal/domain"
)

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker(4)
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(domain.JobUpdate{JobID: "job-1", Status: domain.JobStatusRunning})

	u1 := <-ch1
	u2 := <-ch2
	assert.Equal(t, "job-1", u1.JobID)
	assert.Equal(t, "job-1", u2.JobID)
	assert.Equal(t, 2, b.Subscribers())

	unsub1()
	unsub1()
	_, ok := <-ch1
	assert.False(t, ok, "channel is closed after unsubscribe")
	assert.Equal(t, 1, b.Subscribers())
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(1)
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 10; i++ {
		b.Publish(domain.JobUpdate{Progress: domain.Progress{Done: i, Total: 10}})
	}

	require.Len(t, ch, 1)
	assert.Equal(t, 0, (<-ch).Progress.Done)
}

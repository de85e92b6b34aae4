package tripwire

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestResetTimerDiscardsStaleTick(t *testing.T) {
	is := is.New(t)

	timer := time.NewTimer(time.Millisecond)
	defer timer.Stop()
	time.Sleep(20 * time.Millisecond) // fired, never received

	resetTimer(timer, 100*time.Millisecond)
	select {
	case <-timer.C:
		t.Fatal("stale tick delivered after reset")
	case <-time.After(30 * time.Millisecond):
	}

	select {
	case <-timer.C:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire after reset")
	}

	// a running timer is simply moved
	resetTimer(timer, time.Hour)
	resetTimer(timer, 10*time.Millisecond)
	select {
	case <-timer.C:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire after second reset")
	}
	is.True(!timer.Stop())
}

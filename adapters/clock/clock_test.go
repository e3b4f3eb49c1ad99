package clock_test

import (
	"testing"
	"time"

	"github.com/artpar/restmodel/adapters/clock"
)

func TestReal_NowIsUTC(t *testing.T) {
	if loc := (clock.Real{}).Now().Location(); loc != time.UTC {
		t.Errorf("location = %v, want UTC", loc)
	}
}

func TestFake_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !c.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestFake_ConcurrentReaders(t *testing.T) {
	c := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			c.Advance(time.Second)
		}
	}()
	for i := 0; i < 100; i++ {
		_ = c.Now()
	}
	<-done

	if got := c.Now().Sub(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); got != 100*time.Second {
		t.Errorf("elapsed = %v, want 100s", got)
	}
}

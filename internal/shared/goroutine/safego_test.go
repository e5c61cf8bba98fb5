package goroutine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/accesshub/accesshub/internal/shared/logger"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	SafeGo(logger.NewNop(), "panicky", func() {
		defer wg.Done()
		panic("boom")
	})

	wg.Wait()
}

func TestSafeGo_RunsFunction(t *testing.T) {
	done := make(chan int, 1)
	SafeGo(logger.NewNop(), "worker", func() { done <- 42 })
	assert.Equal(t, 42, <-done)
}

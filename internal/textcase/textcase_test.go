package textcase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLower_FinalSigma(t *testing.T) {
	assert.Equal(t, "οδος", Lower("ΟΔΟΣ"))
	assert.Equal(t, "ärger", Lower("ÄRGER"))
}

func TestTag(t *testing.T) {
	assert.Equal(t, "area/topic", Tag("  #Area/Topic "))
	assert.Equal(t, "", Tag("#"))
}

func TestLower_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "οδος/go", Lower("ΟΔΟΣ/Go"))
			}
		}()
	}
	wg.Wait()
}

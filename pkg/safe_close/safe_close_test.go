package safe_close

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestSafeClose_WaitsForWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)
	sc := NewSafeClose()
	var stopped atomic.Int32
	for i := 0; i < 3; i++ {
		sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			<-closeSignal
			stopped.Add(1)
		})
	}

	boom := errors.New("listen failed")
	sc.SendCloseSignal(boom)
	sc.SendCloseSignal(errors.New("later"))
	assert.ErrorIs(t, sc.WaitClosed(), boom)
	assert.EqualValues(t, 3, stopped.Load())
}

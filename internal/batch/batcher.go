// Package batch implements a single-consumer inference batcher that
// coalesces concurrent Predict calls into GPU-sized batches.
package batch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/alphasnake/internal/model"
)

// Config controls batching behaviour.
type Config struct {
	MaxBatch int
	Wait     time.Duration
}

type request struct {
	state []float32
	resp  chan model.Prediction
}

// Stats are monotonically non-decreasing observability counters.
type Stats struct {
	Requests uint64
	States   uint64
	Batches  uint64
}

// Batcher is a server goroutine coalescing Predict calls into batched
// calls against an underlying Model.
type Batcher struct {
	model model.Model
	cfg   Config

	requests  chan request
	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	requestsCount atomic.Uint64
	statesCount   atomic.Uint64
	batchesCount  atomic.Uint64
}

// New constructs a Batcher bound to m. Call Start to begin serving.
func New(m model.Model, cfg Config) *Batcher {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1
	}
	if cfg.Wait <= 0 {
		cfg.Wait = time.Millisecond
	}
	return &Batcher{
		model:    m,
		cfg:      cfg,
		requests: make(chan request, cfg.MaxBatch*4),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the server loop. Idempotent: calling Start twice is a no-op.
func (b *Batcher) Start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

// Stop signals the server to exit, fulfilling any pending requests with
// the default-uniform prediction first, and waits for it to return.
// Idempotent.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}

func (b *Batcher) run() {
	defer b.wg.Done()

	pending := make([]request, 0, b.cfg.MaxBatch)
	timer := time.NewTimer(b.cfg.Wait)
	if !timer.Stop() {
		<-timer.C
	}
	timerRunning := false

	flush := func() {
		if len(pending) == 0 {
			return
		}
		b.runBatch(pending)
		pending = pending[:0]
	}

	for {
		select {
		case req, ok := <-b.requests:
			if !ok {
				flush()
				return
			}
			pending = append(pending, req)
			if len(pending) == 1 {
				timer.Reset(b.cfg.Wait)
				timerRunning = true
			}
			if len(pending) >= b.cfg.MaxBatch {
				if timerRunning && !timer.Stop() {
					<-timer.C
				}
				timerRunning = false
				flush()
			}
		case <-timer.C:
			timerRunning = false
			flush()
		case <-b.stopCh:
			// Drain whatever is already queued without blocking further.
			// Callers must not submit new requests once Stop has been
			// invoked (the batcher is scoped to one self-play/eval phase
			// and stopped only after its producers have finished).
			for {
				select {
				case req := <-b.requests:
					pending = append(pending, req)
				default:
					b.drainFailed(pending)
					return
				}
			}
		}
	}
}

func (b *Batcher) drainFailed(pending []request) {
	for _, req := range pending {
		req.resp <- model.DefaultPrediction
	}
}

func (b *Batcher) runBatch(pending []request) {
	states := make([][]float32, len(pending))
	for i, r := range pending {
		states[i] = r.state
	}

	preds, err := b.model.PredictBatch(states)
	if err != nil || len(preds) != len(pending) {
		for _, r := range pending {
			r.resp <- model.DefaultPrediction
		}
	} else {
		for i, r := range pending {
			r.resp <- preds[i]
		}
	}

	b.requestsCount.Add(uint64(len(pending)))
	b.statesCount.Add(uint64(len(pending)))
	b.batchesCount.Add(1)
}

// Predict submits one request and blocks until it is fulfilled.
func (b *Batcher) Predict(state []float32) model.Prediction {
	resp := make(chan model.Prediction, 1)
	b.requests <- request{state: state, resp: resp}
	return <-resp
}

// PredictMany submits every state together so they may share a batch,
// and blocks until all are fulfilled. They need not collectively fit in
// one batch.
func (b *Batcher) PredictMany(states [][]float32) []model.Prediction {
	resps := make([]chan model.Prediction, len(states))
	for i, s := range states {
		resps[i] = make(chan model.Prediction, 1)
		b.requests <- request{state: s, resp: resps[i]}
	}
	out := make([]model.Prediction, len(states))
	for i, r := range resps {
		out[i] = <-r
	}
	return out
}

// Stats returns a snapshot of the running counters.
func (b *Batcher) Stats() Stats {
	return Stats{
		Requests: b.requestsCount.Load(),
		States:   b.statesCount.Load(),
		Batches:  b.batchesCount.Load(),
	}
}

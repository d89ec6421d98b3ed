package relay

import (
	"context"
	"sync"
)

// fakeNetwork answers operations from a table keyed by text.
type fakeNetwork struct {
	mu      sync.Mutex
	results map[string]*Result
	err     error
	calls   []Operation
	// block, when set, makes Do wait for ctx or the channel to close.
	block chan struct{}
	// holds blocks only operations with the given text.
	holds map[string]chan struct{}
	// respond, when set, answers operations without a table entry.
	respond func(Operation) *Result
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		results: make(map[string]*Result),
		holds:   make(map[string]chan struct{}),
	}
}

// hold makes operations with text wait until the returned channel is closed.
func (f *fakeNetwork) hold(text string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.holds[text] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeNetwork) on(text string, res *Result) {
	f.mu.Lock()
	f.results[text] = res
	f.mu.Unlock()
}

func (f *fakeNetwork) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeNetwork) Do(ctx context.Context, op Operation) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	res, err, block := f.results[op.Text], f.err, f.block
	if held, ok := f.holds[op.Text]; ok {
		block = held
	}
	respond := f.respond
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil && respond != nil {
		return respond(op), nil
	}
	if res == nil {
		return &Result{Data: []byte(`{}`)}, nil
	}
	return res, nil
}

func (f *fakeNetwork) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

package reactive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/lib/store"
)

// fakeBackend wraps an in-memory store and lets tests count, block and fail calls.
type fakeBackend struct {
	store.IStore

	gets     atomic.Int32
	puts     atomic.Int32
	putsDone atomic.Int32

	failGet atomic.Bool
	failPut atomic.Bool

	mu      sync.Mutex
	getGate chan struct{}
	putGate chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{IStore: newMemoryBackend()}
}

var errInjected = errors.New("injected failure")

// blockGets makes every Get wait until the returned function is called
func (f *fakeBackend) blockGets() (release func()) {
	return f.block(&f.getGate)
}

// blockPuts makes every Put wait until the returned function is called
func (f *fakeBackend) blockPuts() (release func()) {
	return f.block(&f.putGate)
}

func (f *fakeBackend) block(gate *chan struct{}) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	*gate = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			*gate = nil
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *fakeBackend) wait(ctx context.Context, gate *chan struct{}) {
	f.mu.Lock()
	ch := *gate
	f.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (f *fakeBackend) Get(ctx context.Context, ns store.Namespace, key string) ([]byte, bool, error) {
	f.gets.Add(1)
	f.wait(ctx, &f.getGate)
	if f.failGet.Load() {
		return nil, false, store.NewError(store.RetCInternalError, errInjected.Error())
	}
	return f.IStore.Get(ctx, ns, key)
}

func (f *fakeBackend) Put(ctx context.Context, ns store.Namespace, key string, value []byte) error {
	f.puts.Add(1)
	f.wait(ctx, &f.putGate)
	defer f.putsDone.Add(1)
	if f.failPut.Load() {
		return store.NewError(store.RetCInternalError, errInjected.Error())
	}
	return f.IStore.Put(ctx, ns, key, value)
}

// record returns the raw persisted bytes of key in the default namespace
func (f *fakeBackend) record(key string) ([]byte, bool) {
	value, ok, err := f.IStore.Get(context.Background(), DefaultNamespace, key)
	if err != nil {
		panic(err)
	}
	return value, ok
}

func (f *fakeBackend) seed(key string, raw []byte) {
	if err := f.IStore.Put(context.Background(), DefaultNamespace, key, raw); err != nil {
		panic(err)
	}
}

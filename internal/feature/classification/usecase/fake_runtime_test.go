package usecase_test

import (
	"sync/atomic"

	"photo_classifier/internal/feature/classification/domain/entity"
	"photo_classifier/internal/feature/classification/usecase"
)

// fakeRuntime は生存中のハンドル数を数えるusecase.Runtimeのフェイク実装です。
type fakeRuntime struct {
	ImportErr  error
	SessionErr error
	RunErr     error
	RunPanic   bool
	OutShape   []int64
	OutData    []float32
	Block      chan struct{} // nilでなければRunはcloseされるまで待機します

	live    atomic.Int64
	peak    atomic.Int64
	created atomic.Int64
	imports atomic.Int64
	lastIn  atomic.Pointer[entity.ImageTensor]
	names   atomic.Pointer[[2]string]
}

var _ usecase.Runtime = (*fakeRuntime)(nil)

func (f *fakeRuntime) acquire() {
	f.created.Add(1)
	n := f.live.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (f *fakeRuntime) Live() int64 { return f.live.Load() }

func (f *fakeRuntime) ImportGraph(graph []byte, inputName, outputName string) (usecase.Graph, error) {
	f.imports.Add(1)
	f.names.Store(&[2]string{inputName, outputName})
	if f.ImportErr != nil {
		return nil, f.ImportErr
	}
	f.acquire()
	return &fakeGraph{rt: f}, nil
}

type fakeGraph struct{ rt *fakeRuntime }

func (g *fakeGraph) NewSession() (usecase.Session, error) {
	if g.rt.SessionErr != nil {
		return nil, g.rt.SessionErr
	}
	g.rt.acquire()
	return &fakeSession{rt: g.rt}, nil
}

func (g *fakeGraph) Close() error {
	g.rt.live.Add(-1)
	return nil
}

type fakeSession struct{ rt *fakeRuntime }

func (s *fakeSession) Run(input *entity.ImageTensor) (usecase.Tensor, error) {
	rt := s.rt
	rt.lastIn.Store(input)

	// 入力テンソル相当のハンドル
	rt.acquire()
	defer rt.live.Add(-1)

	if rt.Block != nil {
		<-rt.Block
	}
	if rt.RunPanic {
		panic("native crash")
	}
	if rt.RunErr != nil {
		return nil, rt.RunErr
	}
	rt.acquire()
	data := make([]float32, len(rt.OutData))
	copy(data, rt.OutData)
	return &fakeTensor{rt: rt, shape: rt.OutShape, data: data}, nil
}

func (s *fakeSession) Close() error {
	s.rt.live.Add(-1)
	return nil
}

type fakeTensor struct {
	rt    *fakeRuntime
	shape []int64
	data  []float32
}

func (t *fakeTensor) Shape() []int64  { return t.shape }
func (t *fakeTensor) Data() []float32 { return t.data }

// Close はネイティブメモリの解放を模してデータを破壊します。
func (t *fakeTensor) Close() error {
	for i := range t.data {
		t.data[i] = -1
	}
	t.rt.live.Add(-1)
	return nil
}

package compute

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Dispatch is one recorded kernel invocation.
type Dispatch struct {
	Kernel   string
	Bindings map[string]uint64 // binding name -> buffer ID at dispatch time
	Groups   Groups
}

// Recorder wraps a Program and records every dispatch with the buffers bound
// to it. A nil inner program records without executing.
type Recorder struct {
	inner Program

	mu       sync.Mutex
	bindings map[string]map[string]uint64
	log      []Dispatch
	counts   map[string]int
	names    []string
	noLog    bool
}

// NewRecorder wraps inner.
func NewRecorder(inner Program) *Recorder {
	return &Recorder{
		inner:    inner,
		bindings: make(map[string]map[string]uint64),
		counts:   make(map[string]int),
	}
}

func (r *Recorder) FindKernel(name string) (Kernel, error) {
	if r.inner != nil {
		return r.inner.FindKernel(name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.names {
		if n == name {
			return Kernel{Index: i, Name: name}, nil
		}
	}
	r.names = append(r.names, name)
	return Kernel{Index: len(r.names) - 1, Name: name}, nil
}

func (r *Recorder) SetFloat(name string, v float32) {
	if r.inner != nil {
		r.inner.SetFloat(name, v)
	}
}

func (r *Recorder) SetInt(name string, v int) {
	if r.inner != nil {
		r.inner.SetInt(name, v)
	}
}

func (r *Recorder) SetVector(name string, v mgl32.Vec3) {
	if r.inner != nil {
		r.inner.SetVector(name, v)
	}
}

func (r *Recorder) SetBuffer(k Kernel, binding string, b *Buffer) {
	r.mu.Lock()
	m := r.bindings[k.Name]
	if m == nil {
		m = make(map[string]uint64)
		r.bindings[k.Name] = m
	}
	if b != nil {
		m[binding] = b.ID()
	} else {
		delete(m, binding)
	}
	r.mu.Unlock()

	if r.inner != nil {
		r.inner.SetBuffer(k, binding, b)
	}
}

func (r *Recorder) Dispatch(k Kernel, g Groups) error {
	r.mu.Lock()
	if !r.noLog {
		snap := make(map[string]uint64, len(r.bindings[k.Name]))
		for name, id := range r.bindings[k.Name] {
			snap[name] = id
		}
		r.log = append(r.log, Dispatch{Kernel: k.Name, Bindings: snap, Groups: g})
	}
	r.counts[k.Name]++
	r.mu.Unlock()

	if r.inner != nil {
		return r.inner.Dispatch(k, g)
	}
	return nil
}

// NewCounter wraps inner and keeps only per-kernel counts, for long runs.
func NewCounter(inner Program) *Recorder {
	r := NewRecorder(inner)
	r.noLog = true
	return r
}

// Dispatches returns a copy of the dispatch log.
func (r *Recorder) Dispatches() []Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Dispatch, len(r.log))
	copy(out, r.log)
	return out
}

// Kernels returns the kernel names of the log in order.
func (r *Recorder) Kernels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.log))
	for i, d := range r.log {
		out[i] = d.Kernel
	}
	return out
}

// Count returns how many times kernel was dispatched.
func (r *Recorder) Count(kernel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kernel]
}

// Drain returns the per-kernel counts since the last Drain and resets them.
func (r *Recorder) Drain() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.counts
	r.counts = make(map[string]int, len(out))
	return out
}

// Reset clears the log and counts.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
	r.counts = make(map[string]int)
}

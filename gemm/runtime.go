package gemm

// KernelString is one emitted kernel: compute-dialect source plus its
// launch descriptor.
type KernelString struct {
	Name            string
	Source          string
	LocalWorkSize   uint64
	GlobalWorkSize  uint64
	WorkPerThread   uint32
	Description     string
}

// Runtime is the GPU runtime boundary. It is consumed, never implemented,
// by this module's core: gemm/simrt provides an analytical implementation
// for GPU-free runs and tests, and a real OpenCL/HIP binding slots in the
// same way.
type Runtime interface {
	// DeviceIdentifier returns the device string used as the kernel cache key.
	DeviceIdentifier() string

	// EnsureBuffers binds (or allocates) the device buffers for a problem
	// and its offsets. Called once per search run, before any Compile.
	EnsureBuffers(gg *Geometry, toff *Offsets) error

	// Compile turns emitted source into a launchable kernel. A compiler
	// rejection is an error; the search treats it as a skipped candidate.
	Compile(ks KernelString) (Kernel, error)
}

// Kernel is a compiled kernel bound to its launch geometry.
type Kernel interface {
	// Benchmark enqueues the kernel nRuns times and returns per-run
	// execution seconds from event-based timing.
	Benchmark(nRuns uint32) ([]float64, error)
}

// Package gemm provides the core types of the GEMM kernel autotuner.
//
// # Reading Guide
//
// Start with these three files to understand the tuning kernel:
//   - geometry.go: the GEMM problem description (shapes, layouts, workspace) and its distance metric
//   - hyperparams.go: the 15-key discrete tuning vector and its wire form
//   - derived.go: the deterministic projection (Geometry, HyperParams) -> codegen parameter bundle
//
// # Architecture
//
// The gemm package defines value types and interfaces; the moving parts live
// in sub-packages:
//   - gemm/codegen: kernel source emission (main, copy, beta-scale kernels)
//   - gemm/find: the guided local search driver
//   - gemm/simrt: an analytical simulated Runtime for GPU-free runs and tests
//
// A search round flows Geometry -> cache lookup -> HyperParams ->
// DerivedParams -> codegen -> Runtime -> timing, then descends through the
// neighbor graph (neighbors.go) until the budget is exhausted. Every object
// in the chain is immutable after construction; each candidate owns fresh
// instances.
//
// # Key Interfaces
//
// The extension point is the GPU runtime boundary:
//   - Runtime: device identification and source-to-binary compilation
//   - Kernel: enqueue and event-based timing of a compiled kernel
package gemm

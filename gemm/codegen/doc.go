// Package codegen emits compute-kernel source strings from a completed
// DerivedParams bundle.
//
// Four kernel kinds are produced:
//   - main: the alpha*A*B + beta*C update, with the edge trick for
//     non-divisible tiles and CAS accumulation when the reduction is split
//   - copya / copyb: byline re-layout of A or B into padded workspace in
//     COPY mode; in NFORM mode the same entry point emits a normal-form
//     re-tiling kernel (gemm_nform_a / gemm_nform_b) instead
//   - betac: pre-scales C by beta when the main kernel accumulates with atomics
//
// Emission is mechanical: every quantity is read from DerivedParams, which
// has already been validated. The emitted dialect is OpenCL C
// (__kernel/__global/__local/barrier/atomic_cmpxchg).
package codegen

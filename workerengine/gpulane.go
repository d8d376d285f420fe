// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: gpulane.go — GPU lane contract (kernel backend out of scope)
//
// Purpose:
//   - Documents the shape a CUDA/OpenCL-backed Lane would take so the rest
//     of the worker (pipeline, ring draining, network session) is written
//     against the same Lane interface regardless of backend. No kernel is
//     implemented here.
// ─────────────────────────────────────────────────────────────────────────────

package workerengine

import (
	"errors"

	"kangaroo/debug"
	"kangaroo/dpring"
	"kangaroo/herd"
)

// ErrGPUNotImplemented is logged by GPULane.Run; writing and launching the
// actual device kernel is out of scope.
var ErrGPUNotImplemented = errors.New("workerengine: GPU lane has no kernel backend in this build")

// GPULane is the GPU-backed counterpart to CPULane: same cohort/Params
// bookkeeping, but Run would enqueue work on a device command queue and pull
// distinguished points back from device memory instead of stepping kangaroos
// on the host. DeviceID selects which GPU to bind to when -gpuId is passed.
type GPULane struct {
	DeviceID int
	Params   herd.Params
}

// NewGPULane records the device and search parameters a real kernel launch
// would need; it does not allocate any device resources.
func NewGPULane(deviceID int, params herd.Params) *GPULane {
	return &GPULane{DeviceID: deviceID, Params: params}
}

// Run logs ErrGPUNotImplemented and returns immediately; it never steps a
// kangaroo. Callers choose a CPULane instead at startup rather than falling
// back to one silently mid-run.
func (l *GPULane) Run(ring *dpring.Ring) {
	debug.DropError("gpu lane", ErrGPUNotImplemented)
}

// Stop is a no-op: Run already returns immediately.
func (l *GPULane) Stop() {}

// Package device resolves the inference device (C2): CPU or a GPU index,
// plus the concurrency limit that follows from that choice. Resolution
// happens once at startup and the result is immutable for the process
// lifetime, mirroring the teacher's process-scoped singleton pattern.
package device

import "strings"

// Kind is the resolved device family.
type Kind string

const (
	KindCPU Kind = "cpu"
	KindGPU Kind = "gpu"
)

// Device is the resolved, immutable device selection for the process.
type Device struct {
	Kind               Kind
	Index              int // -1 for CPU
	DefaultMaxInflight int
}

// String renders the device the way EasyNMT/torch would ("cpu", "cuda:0").
func (d Device) String() string {
	if d.Kind == KindCPU {
		return "cpu"
	}
	return "cuda:" + itoa(d.Index)
}

// GPUProbe reports GPU availability. Production code has no CUDA/ROCm
// binding to call into (spec.md §1 excludes implementing the inference
// runtime itself); NoGPU is the default and any real probe can be wired in
// behind this interface without touching the resolution logic below.
type GPUProbe interface {
	Available() bool
}

// NoGPU is a GPUProbe that always reports no GPU present, matching a
// CPU-only deployment.
type NoGPU struct{}

func (NoGPU) Available() bool { return false }

// Options mirrors the env-derived inputs to device resolution.
type Options struct {
	DeviceEnv        string // "auto", "cpu", "cuda", "cuda:N"
	UseGPU           string // "true", "false", "auto"
	MaxWorkersBackend int
}

// Resolve applies the DEVICE > USE_GPU > auto-detect precedence from the
// original implementation's DeviceManager/resolve_device_index.
func Resolve(opt Options, probe GPUProbe) Device {
	index := resolveIndex(opt, probe)
	kind := KindCPU
	if index >= 0 {
		kind = KindGPU
	}
	return Device{
		Kind:               kind,
		Index:              index,
		DefaultMaxInflight: maxInflight(index, opt.MaxWorkersBackend),
	}
}

func resolveIndex(opt Options, probe GPUProbe) int {
	dev := strings.ToLower(strings.TrimSpace(opt.DeviceEnv))
	if dev != "" && dev != "auto" {
		if strings.HasPrefix(dev, "cuda") {
			if !probe.Available() {
				return -1
			}
			if i := strings.Index(dev, ":"); i != -1 {
				if n, ok := atoiOK(dev[i+1:]); ok {
					return n
				}
				return 0
			}
			return 0
		}
		return -1 // explicit "cpu" or anything else non-cuda
	}

	switch strings.ToLower(strings.TrimSpace(opt.UseGPU)) {
	case "1", "true", "yes":
		if probe.Available() {
			return 0
		}
		return -1
	case "0", "false", "no":
		return -1
	default: // auto
		if probe.Available() {
			return 0
		}
		return -1
	}
}

// maxInflight mirrors get_max_inflight_translations: GPU serializes to 1 to
// avoid VRAM oversubscription; CPU allows MAX_WORKERS_BACKEND parallelism.
func maxInflight(index, maxWorkersBackend int) int {
	if index == -1 {
		if maxWorkersBackend < 1 {
			return 1
		}
		return maxWorkersBackend
	}
	return 1
}

func atoiOK(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	return n, true
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

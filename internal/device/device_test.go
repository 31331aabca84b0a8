package device

import "testing"

type fakeProbe bool

func (f fakeProbe) Available() bool { return bool(f) }

func TestResolveAutoNoGPU(t *testing.T) {
	d := Resolve(Options{DeviceEnv: "auto", UseGPU: "auto", MaxWorkersBackend: 2}, fakeProbe(false))
	if d.Kind != KindCPU || d.Index != -1 {
		t.Fatalf("got %+v", d)
	}
	if d.DefaultMaxInflight != 2 {
		t.Fatalf("DefaultMaxInflight = %d, want 2", d.DefaultMaxInflight)
	}
}

func TestResolveAutoWithGPU(t *testing.T) {
	d := Resolve(Options{DeviceEnv: "auto", UseGPU: "auto", MaxWorkersBackend: 2}, fakeProbe(true))
	if d.Kind != KindGPU || d.Index != 0 {
		t.Fatalf("got %+v", d)
	}
	if d.DefaultMaxInflight != 1 {
		t.Fatalf("DefaultMaxInflight = %d, want 1 on GPU", d.DefaultMaxInflight)
	}
}

func TestResolveExplicitDeviceWinsOverUseGPU(t *testing.T) {
	d := Resolve(Options{DeviceEnv: "cpu", UseGPU: "true", MaxWorkersBackend: 1}, fakeProbe(true))
	if d.Kind != KindCPU {
		t.Fatalf("explicit DEVICE=cpu should win: got %+v", d)
	}
}

func TestResolveExplicitCudaIndex(t *testing.T) {
	d := Resolve(Options{DeviceEnv: "cuda:1", UseGPU: "auto"}, fakeProbe(true))
	if d.Kind != KindGPU || d.Index != 1 {
		t.Fatalf("got %+v", d)
	}
}

func TestResolveUseGPUFalse(t *testing.T) {
	d := Resolve(Options{DeviceEnv: "auto", UseGPU: "false"}, fakeProbe(true))
	if d.Kind != KindCPU {
		t.Fatalf("USE_GPU=false should force CPU: got %+v", d)
	}
}

func TestDeviceString(t *testing.T) {
	if (Device{Kind: KindCPU, Index: -1}).String() != "cpu" {
		t.Fatalf("unexpected cpu string")
	}
	if (Device{Kind: KindGPU, Index: 2}).String() != "cuda:2" {
		t.Fatalf("unexpected gpu string")
	}
}

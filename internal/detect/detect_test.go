package detect

import (
	"testing"

	"nmtd/pkg/types"
)

func TestDetectShortTextIsUndetermined(t *testing.T) {
	d := NewStatistical()
	if got := d.Detect("hi"); got != types.UndeterminedCode {
		t.Errorf("got %q", got)
	}
}

func TestDetectChinese(t *testing.T) {
	d := NewStatistical()
	if got := d.Detect("你好，世界，这是一段中文文本"); got != "zh" {
		t.Errorf("got %q", got)
	}
}

func TestDetectRussian(t *testing.T) {
	d := NewStatistical()
	if got := d.Detect("Привет, это тестовый текст на русском"); got != "ru" {
		t.Errorf("got %q", got)
	}
}

func TestDetectEnglish(t *testing.T) {
	d := NewStatistical()
	if got := d.Detect("the quick fox is running to the store for milk"); got != "en" {
		t.Errorf("got %q", got)
	}
}

func TestDetectGerman(t *testing.T) {
	d := NewStatistical()
	if got := d.Detect("der Hund und die Katze sind nicht im Garten"); got != "de" {
		t.Errorf("got %q", got)
	}
}

func TestDetectBatchPreservesOrderAndLength(t *testing.T) {
	d := NewStatistical()
	in := []string{"the quick fox runs to the store for milk", "der Hund und die Katze sind im Garten", "zz"}
	out := d.DetectBatch(in)
	if len(out) != len(in) {
		t.Fatalf("expected %d results, got %d", len(in), len(out))
	}
	if out[0] != "en" || out[1] != "de" || out[2] != types.UndeterminedCode {
		t.Errorf("got %v", out)
	}
}

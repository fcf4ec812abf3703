package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"RENDER_URL", "RENDER_DPMM", "LABEL_WIDTH", "LABEL_HEIGHT", "PREVIEW_DEBOUNCE_MS", "WORKER_COUNT", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.RenderURL != "http://api.labelary.com/v1" || cfg.RenderDPMM != 8 || cfg.LabelWidth != 4 || cfg.LabelHeight != 6 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.PreviewDebounceMS != 500 || cfg.WorkerCount != 4 || cfg.DatabaseURL != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RENDER_DPMM", "12")
	t.Setenv("LABEL_WIDTH", "2.25")
	t.Setenv("WORKER_COUNT", "not-a-number")
	cfg := Load()
	if cfg.RenderDPMM != 12 || cfg.LabelWidth != 2.25 {
		t.Fatalf("overrides not applied %+v", cfg)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("invalid number should fall back, got %d", cfg.WorkerCount)
	}
}

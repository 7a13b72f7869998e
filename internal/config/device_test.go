package config

import (
	"testing"

	"github.com/banshee-data/proteusgo/internal/fsutil"
)

func withMemoryFS(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	prev := fs
	fs = mfs
	t.Cleanup(func() { fs = prev })
	return mfs
}

func TestLoadDeviceConfigReadsThroughFileSystem(t *testing.T) {
	mfs := withMemoryFS(t)
	doc := `{"beam_direction":[0,0,1],"sensors":[
		{"id":1,"name":"plane0","measurement":"binary","num_cols":10,"num_rows":10,"pitch_col":1e-5,"pitch_row":1e-5}
	]}`
	if err := mfs.WriteFile("/device.json", []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadDeviceConfig("/device.json")
	if err != nil {
		t.Fatalf("LoadDeviceConfig: %v", err)
	}
	if len(cfg.Sensors) != 1 || cfg.Sensors[0].ID != 1 {
		t.Fatalf("unexpected sensors: %+v", cfg.Sensors)
	}
}

func TestLoadDeviceConfigRejectsNonJSONExtension(t *testing.T) {
	withMemoryFS(t)
	if _, err := LoadDeviceConfig("/device.txt"); err == nil {
		t.Fatal("expected error for non-.json path")
	}
}

func TestLoadDeviceConfigRejectsOversizedFile(t *testing.T) {
	mfs := withMemoryFS(t)
	big := make([]byte, maxConfigFileSize+1)
	if err := mfs.WriteFile("/device.json", big, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadDeviceConfig("/device.json"); err == nil {
		t.Fatal("expected error for oversized config file")
	}
}

func TestLoadRunOptionsReadsThroughFileSystem(t *testing.T) {
	mfs := withMemoryFS(t)
	if err := mfs.WriteFile("/options.json", []byte(`{"damping":0.3,"bins":50}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts, err := LoadRunOptions("/options.json")
	if err != nil {
		t.Fatalf("LoadRunOptions: %v", err)
	}
	if got := opts.GetDamping(); got != 0.3 {
		t.Errorf("GetDamping = %v, want 0.3", got)
	}
	if got := opts.GetBins(); got != 50 {
		t.Errorf("GetBins = %v, want 50", got)
	}
}

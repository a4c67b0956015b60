package extractor

import (
	"encoding/json"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/nci/voxrgb/utils"
)

func writeVolume(t *testing.T, path string, vals ...float64) {
	v, err := utils.NewFloat64Volume(utils.NewGeometry(len(vals), 1, 1), vals)
	if err != nil {
		t.Fatalf("failed to build volume: %v", err)
	}
	if err := utils.WriteVolume(path, v); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestExtractVolumeInfo(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_crawl")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "a.npy")
	writeVolume(t, path, 2, 5, 9, 1, 7)

	info, err := ExtractVolumeInfo(path)
	if err != nil {
		t.Fatalf("ExtractVolumeInfo failed: %v", err)
	}
	if info.Geometry.Size != [3]int{5, 1, 1} || len(info.ID) != 32 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Stats["max"].(float64) != 9 {
		t.Errorf("unexpected stats %v", info.Stats)
	}
	if info.Window == nil || info.Window.Min != 2 || info.Window.Max != 9 {
		t.Errorf("unexpected default window %v", info.Window)
	}

	flat := filepath.Join(dir, "flat.npy")
	writeVolume(t, flat, 3, 3)
	if info, err = ExtractVolumeInfo(flat); err != nil || info.Window != nil {
		t.Errorf("flat volume: got %v %v", info, err)
	}
}

func TestExtractVolumeInfoInfiniteVoxels(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_crawl")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "inf.npy")
	writeVolume(t, path, math.Inf(-1), 1, 3, math.Inf(1))

	info, err := ExtractVolumeInfo(path)
	if err != nil {
		t.Fatalf("ExtractVolumeInfo failed: %v", err)
	}
	if info.Stats["mean"].(float64) != 2 || info.Stats["count"].(float64) != 2 {
		t.Errorf("unexpected stats %v", info.Stats)
	}
	if _, err := json.Marshal(info); err != nil {
		t.Errorf("record with infinite voxels does not encode: %v", err)
	}
}

func TestVolumeCrawler(t *testing.T) {
	dir, err := ioutil.TempDir("", "voxrgb_crawl")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	for _, sub := range []string{"pet/s1", "pet/s2", "ct"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", sub, err)
		}
	}
	writeVolume(t, filepath.Join(dir, "pet/s1/a.npy"), 0, 1)
	writeVolume(t, filepath.Join(dir, "pet/s2/b.npy"), 0, 2)
	writeVolume(t, filepath.Join(dir, "ct/c.npy"), 0, 3)
	if err := ioutil.WriteFile(filepath.Join(dir, "pet/notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write notes: %v", err)
	}

	crawl := func(pattern string) []string {
		var mu sync.Mutex
		var names []string
		crawler, err := NewVolumeCrawler(2, pattern, func(info *VolumeInfo) {
			mu.Lock()
			names = append(names, filepath.Base(info.FilePath))
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("NewVolumeCrawler(%q) failed: %v", pattern, err)
		}
		if err := crawler.Crawl(dir); err != nil {
			t.Errorf("Crawl failed: %v", err)
		}
		sort.Strings(names)
		return names
	}

	if got := crawl(""); len(got) != 3 || got[0] != "a.npy" || got[2] != "c.npy" {
		t.Errorf("got %v", got)
	}
	if got := crawl(`type == 'file' || path !~ '/ct$'`); len(got) != 2 || got[0] != "a.npy" || got[1] != "b.npy" {
		t.Errorf("got %v", got)
	}

	if _, err := NewVolumeCrawler(1, "size > 3", nil); err == nil {
		t.Errorf("expected an error for an unknown variable")
	}
}

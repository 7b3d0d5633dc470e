package ui

import (
	"strings"
	"testing"

	"rbcheck/internal/pipeline"
)

func TestProgressFollowsEvents(t *testing.T) {
	m := NewProgressModel("check", []string{"a.tree.json", "b.tree.json"}, nil).(*progressModel)
	if m.fraction() != 0 {
		t.Fatalf("fresh model at %v", m.fraction())
	}

	m.applyEvent(pipeline.Event{File: "a.tree.json", Stage: pipeline.StageIndex, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{File: "a.tree.json", Stage: pipeline.StageTypecheck, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{File: "b.tree.json", Stage: pipeline.StageIndex, Status: pipeline.StatusError})
	m.applyEvent(pipeline.Event{File: "unknown", Stage: pipeline.StageIndex, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{Status: pipeline.StatusDone})

	if got := m.fraction(); got != 1 {
		t.Fatalf("fraction = %v, want 1", got)
	}
	if m.failed != 1 {
		t.Fatalf("failed = %d", m.failed)
	}
	view := m.View()
	for _, want := range []string{"check (finished)", "done", "error", "1 file(s) failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestItemLabel(t *testing.T) {
	tests := []struct {
		item fileItem
		want string
	}{
		{fileItem{status: pipeline.StatusQueued}, "queued"},
		{fileItem{stage: pipeline.StageIndex, status: pipeline.StatusWorking}, "indexing"},
		{fileItem{stage: pipeline.StageIndex, status: pipeline.StatusDone}, "indexed"},
		{fileItem{stage: pipeline.StageTypecheck, status: pipeline.StatusWorking}, "checking"},
		{fileItem{stage: pipeline.StageTypecheck, status: pipeline.StatusDone}, "done"},
	}
	for _, tt := range tests {
		if got := itemLabel(tt.item); got != tt.want {
			t.Errorf("itemLabel(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("lib/very/long/path.tree.json", 10); got != "lib/ver..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	// широкие символы занимают две колонки, многоточие входит в ширину
	if got := truncate("日本語のパス.tree.json", 9); got != "日本語..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}

package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса
)

// documentSeeds are small valid documents covering the constructs the
// builder lowers.
var documentSeeds = []string{
	`{"path": "a.rb", "source": "x", "root": {"kind": "empty", "span": [0, 1]}}`,
	`{"path": "a.rb", "strict": "strict", "source": "class A; def f(x) = x; end", "root":
	 {"kind": "class", "span": [0, 26], "name": {"kind": "const", "span": [6, 7], "name": "A"}, "body": [
	  {"kind": "def", "span": [9, 22], "name": "f", "params": [{"kind": "req", "name": "x", "span": [15, 16]}],
	   "body": {"kind": "local", "span": [20, 21], "name": "x"}}]}}`,
	`{"path": "b.rb", "strict": "true", "source": "0123456789", "root":
	 {"kind": "class", "span": [0, 1], "name": {"kind": "const", "span": [0, 1], "name": "B"}, "body": [
	  {"kind": "def", "span": [0, 1], "name": "run", "params": [],
	   "body": {"kind": "send", "span": [0, 1], "fun": "missing", "args": [],
	    "recv": {"kind": "send", "span": [0, 1], "fun": "new", "args": [], "recv": {"kind": "const", "span": [0, 1], "name": "B"}}}}]}}`,
	`{"path": "c.rb", "source": "", "root": {"kind": "unknown"}}`,
	`{"path": 1}`,
	`[]`,
}

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	for _, s := range documentSeeds {
		f.Add([]byte(s))
	}
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	// проходим по дереву testdata, добавляем все *.tree.json файлы
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || !strings.HasSuffix(path, ".tree.json") {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

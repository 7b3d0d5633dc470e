package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fortio.org/safecast"

	"rbcheck/internal/enforce"
)

// FileSet is the file table of a global state. Slot 0 is reserved for "no file".
//
// Files are shared by pointer between clones; only the slice is copied.
// Mutation requires the table to be unfrozen, and writers from other
// goroutines must hold Lock.
type FileSet struct {
	mu      sync.RWMutex
	files   []*File
	index   map[string]FileID // path -> id
	baseDir string            // базовая директория для относительных путей
	frozen  bool
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: []*File{nil},
		index: make(map[string]FileID),
	}
}

// NewFileSetWithBase создаёт FileSet с заданной базовой директорией.
func NewFileSetWithBase(baseDir string) *FileSet {
	fs := NewFileSet()
	fs.baseDir = baseDir
	return fs
}

// SetBaseDir устанавливает базовую директорию для относительных путей.
func (fileSet *FileSet) SetBaseDir(dir string) {
	fileSet.baseDir = dir
}

// BaseDir возвращает текущую базовую директорию.
func (fileSet *FileSet) BaseDir() string {
	if fileSet.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fileSet.baseDir
}

// Lock takes the exclusive write lock. Used by global state substitution.
func (fileSet *FileSet) Lock()   { fileSet.mu.Lock() }
func (fileSet *FileSet) Unlock() { fileSet.mu.Unlock() }

// Frozen reports whether mutation is currently forbidden.
func (fileSet *FileSet) Frozen() bool { return fileSet.frozen }

// SetFrozen changes the frozen flag and returns the previous value.
func (fileSet *FileSet) SetFrozen(frozen bool) bool {
	old := fileSet.frozen
	fileSet.frozen = frozen
	return old
}

func (fileSet *FileSet) nextID() FileID {
	n, err := safecast.Conv[uint16](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("file table overflow: %w", err))
	}
	return FileID(n)
}

// Add stores a file from normalized bytes, computes LineIdx and Hash, and returns a new FileID.
// It always creates a new FileID even if a file with the same path already exists.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	return fileSet.add(&File{
		Path:    normalizePath(path),
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
		Flags:   flags,
		Type:    Normal,
		Strict:  StrictTrue,
	})
}

// Reserve allocates an id for a file that will be read later.
func (fileSet *FileSet) Reserve(path string) FileID {
	return fileSet.add(&File{Path: normalizePath(path), Type: NotYetRead})
}

func (fileSet *FileSet) add(f *File) FileID {
	enforce.That(!fileSet.frozen, "file table is frozen")
	f.ID = fileSet.nextID()
	fileSet.files = append(fileSet.files, f)
	// Всегда обновляем индекс на последнюю версию файла
	fileSet.index[f.Path] = f.ID
	return f.ID
}

// EnterAt places f at id, growing the table with NotYetRead placeholders.
// The slot must be empty or NotYetRead.
func (fileSet *FileSet) EnterAt(f *File, id FileID) {
	enforce.That(!fileSet.frozen, "file table is frozen")
	enforce.That(id != 0, "cannot enter a file at id 0")
	enforce.That(f != nil && f.ID == id, "file id mismatch entering %d", id)
	for int(id) >= len(fileSet.files) {
		fileSet.files = append(fileSet.files, nil)
	}
	if cur := fileSet.files[id]; cur != nil {
		enforce.That(cur.Type == NotYetRead, "file %d (%s) is already present", id, cur.Path)
	}
	fileSet.files[id] = f
	fileSet.index[f.Path] = id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds a virtual file (stdin, test, or generated) with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// SetStrict overrides the strictness of a file before it is shared.
func (fileSet *FileSet) SetStrict(id FileID, lvl StrictLevel) {
	enforce.That(!fileSet.frozen, "file table is frozen")
	f := fileSet.Get(id)
	enforce.That(f != nil, "no file %d", id)
	// файлы разделяются между копиями, поэтому меняем копию записи
	cp := *f
	cp.Strict = lvl
	fileSet.files[id] = &cp
}

// Get returns the file for id, or nil when the slot is empty or out of range.
func (fileSet *FileSet) Get(id FileID) *File {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return fileSet.files[id]
}

// Len is the number of slots, including the reserved slot 0.
func (fileSet *FileSet) Len() int {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	return len(fileSet.files)
}

// GetLocked and LenLocked are Get and Len for callers already holding Lock.
func (fileSet *FileSet) GetLocked(id FileID) *File {
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return fileSet.files[id]
}

func (fileSet *FileSet) LenLocked() int { return len(fileSet.files) }

// GetLatest returns the latest file ID for the given path, if it exists.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// GetByPath возвращает *File по пути, если был загружен в этот FileSet.
func (fileSet *FileSet) GetByPath(path string) (*File, bool) {
	id, ok := fileSet.GetLatest(path)
	if !ok {
		return nil, false
	}
	return fileSet.Get(id), true
}

// Clone copies the table. The *File values are shared.
func (fileSet *FileSet) Clone() *FileSet {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	out := &FileSet{
		files:   append([]*File(nil), fileSet.files...),
		index:   make(map[string]FileID, len(fileSet.index)),
		baseDir: fileSet.baseDir,
		frozen:  fileSet.frozen,
	}
	for k, v := range fileSet.index {
		out.index[k] = v
	}
	return out
}

// GetLine возвращает строку с заданным номером (1-based) из файла.
// Если строка не существует, возвращает пустую строку.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}
	lenLineIdx, err := safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	var start, end uint32
	switch {
	case lineNum == 1:
		start = 0
	case lineNum-2 < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return ""
	}
	if lineNum-1 < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}
	if start >= lenContent {
		return ""
	}
	return string(f.Content[start:min(end, lenContent)])
}

// DisplayPath shortens long absolute paths to their base name.
func (f *File) DisplayPath(baseDir string) string {
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, f.Path); err == nil && !filepath.IsAbs(rel) && len(rel) < len(f.Path) {
			return filepath.ToSlash(rel)
		}
	}
	if len(f.Path) < 40 || !filepath.IsAbs(f.Path) {
		return f.Path
	}
	return filepath.Base(f.Path)
}

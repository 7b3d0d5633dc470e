package source

import (
	"fmt"

	"rbcheck/internal/enforce"
)

// NoOffset is the "does not exist" sentinel for both offsets of a Loc.
const NoOffset uint32 = 0xFFFFFF

const (
	offsetBits = 24
	offsetMask = uint64(NoOffset)
	endShift   = offsetBits
	fileShift  = 2 * offsetBits
)

// Loc is an interned source range packed into 8 bytes:
// begin in bits 0..23, end in bits 24..47, file id in bits 48..63.
//
// The zero Loc does not exist. Locs compare with == and can be used as map keys.
type Loc uint64

// NewLoc packs a range. begin <= end <= NoOffset must hold.
func NewLoc(file FileID, begin, end uint32) Loc {
	enforce.That(begin <= end, "loc begin %d is past end %d", begin, end)
	enforce.That(end <= NoOffset, "loc end %d exceeds %d", end, NoOffset)
	return pack(file, begin, end)
}

// NoLoc returns a Loc that names a file but no range in it.
func NoLoc(file FileID) Loc {
	return pack(file, NoOffset, NoOffset)
}

func pack(file FileID, begin, end uint32) Loc {
	return Loc(uint64(file)<<fileShift | (uint64(end)&offsetMask)<<endShift | uint64(begin)&offsetMask)
}

func (l Loc) File() FileID  { return FileID(uint64(l) >> fileShift) }
func (l Loc) Begin() uint32 { return uint32(uint64(l) & offsetMask) }
func (l Loc) End() uint32   { return uint32((uint64(l) >> endShift) & offsetMask) }

// Exists reports whether l names a real range in a real file.
func (l Loc) Exists() bool {
	return l.File() != 0 && l.Begin() != NoOffset
}

// Len is the byte length of the range, zero when l does not exist.
func (l Loc) Len() uint32 {
	if !l.Exists() {
		return 0
	}
	return l.End() - l.Begin()
}

// Join returns the smallest Loc spanning both l and other.
// A non-existent side is ignored; both sides existing in different files is a fault.
func (l Loc) Join(other Loc) Loc {
	if !l.Exists() {
		return other
	}
	if !other.Exists() {
		return l
	}
	enforce.That(l.File() == other.File(), "joining locs from files %d and %d", l.File(), other.File())
	return pack(l.File(), min(l.Begin(), other.Begin()), max(l.End(), other.End()))
}

// Contains reports whether other lies within l in the same file.
func (l Loc) Contains(other Loc) bool {
	if !l.Exists() || !other.Exists() || l.File() != other.File() {
		return false
	}
	return l.Begin() <= other.Begin() && other.End() <= l.End()
}

// ContainsOffset reports whether off lies in [begin, end] of l.
// The end is inclusive so that a cursor just after a token still hits it.
func (l Loc) ContainsOffset(file FileID, off uint32) bool {
	return l.Exists() && l.File() == file && l.Begin() <= off && off <= l.End()
}

// CopyWithZeroLength collapses l to its begin offset.
func (l Loc) CopyWithZeroLength() Loc {
	if !l.Exists() {
		return l
	}
	return pack(l.File(), l.Begin(), l.Begin())
}

// CopyEndWithZeroLength collapses l to its end offset.
func (l Loc) CopyEndWithZeroLength() Loc {
	if !l.Exists() {
		return l
	}
	return pack(l.File(), l.End(), l.End())
}

func (l Loc) String() string {
	if !l.Exists() {
		return fmt.Sprintf("%d:???", l.File())
	}
	return fmt.Sprintf("%d:%d-%d", l.File(), l.Begin(), l.End())
}

func (l Loc) file(fs *FileSet) *File {
	enforce.That(l.File() != 0, "decoding loc %s without a file", l)
	f := fs.Get(l.File())
	enforce.That(f != nil, "decoding loc %s against missing file %d", l, l.File())
	return f
}

// Position decodes l into 1-based line/column pairs using the file's line index.
func (l Loc) Position(fs *FileSet) (begin, end LineCol) {
	f := l.file(fs)
	enforce.That(l.Exists(), "decoding non-existent loc %s", l)
	return toLineCol(f.LineIdx, l.Begin()), toLineCol(f.LineIdx, l.End())
}

// Source returns the exact text covered by l.
func (l Loc) Source(fs *FileSet) string {
	f := l.file(fs)
	if !l.Exists() {
		return ""
	}
	enforce.That(int(l.End()) <= len(f.Content), "loc %s is past the end of %s", l, f.Path)
	return string(f.Content[l.Begin():l.End()])
}

// FilePosToString renders l as path:line:col.
func (l Loc) FilePosToString(fs *FileSet) string {
	if l.File() == 0 {
		return "???"
	}
	f := l.file(fs)
	if !l.Exists() {
		return f.Path
	}
	begin, _ := l.Position(fs)
	return fmt.Sprintf("%s:%d:%d", f.Path, begin.Line, begin.Col)
}

// ShowRaw is the debug form used in dumps and test failures.
func (l Loc) ShowRaw(fs *FileSet) string {
	if !l.Exists() {
		return "Loc {file=" + l.fileName(fs) + " <none>}"
	}
	begin, end := l.Position(fs)
	return fmt.Sprintf("Loc {file=%s start=%s end=%s}", l.fileName(fs), begin, end)
}

func (l Loc) fileName(fs *FileSet) string {
	if l.File() == 0 || fs == nil {
		return "???"
	}
	if f := fs.Get(l.File()); f != nil {
		return f.Path
	}
	return "???"
}

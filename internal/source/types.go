package source

import "fmt"

type (
	// FileID uniquely identifies a source file within a FileSet. Zero means "no file".
	FileID uint16
	// FileFlags encodes metadata about a source file.
	FileFlags uint8 // метаданные
)

const (
	// FileVirtual indicates the file was added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota // добавлен не с диска (тест, stdin)
	FileHadBOM
	FileNormalizedCRLF
)

// SourceType describes where a file came from and whether its content is usable.
type SourceType uint8

const (
	Normal SourceType = iota
	// Payload files are bundled definitions loaded from a snapshot.
	Payload
	Stdlib
	// NotYetRead reserves an id for a file whose content has not been loaded.
	NotYetRead
	// TombStone marks a file that was deleted during an incremental update.
	TombStone
)

func (t SourceType) String() string {
	switch t {
	case Normal:
		return "normal"
	case Payload:
		return "payload"
	case Stdlib:
		return "stdlib"
	case NotYetRead:
		return "not-yet-read"
	case TombStone:
		return "tombstone"
	default:
		return fmt.Sprintf("SourceType(%d)", uint8(t))
	}
}

// File captures metadata and content for a single source file.
// Files are immutable once added, so several file tables may share one *File.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
	Type    SourceType
	Strict  StrictLevel
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}

func (lc LineCol) String() string {
	return fmt.Sprintf("%d:%d", lc.Line, lc.Col)
}

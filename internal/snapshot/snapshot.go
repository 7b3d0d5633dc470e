// Package snapshot persists a global state with msgpack so a later run
// can start from already-named files instead of rebuilding every table.
//
// A snapshot stores the name table, the symbol table and the file table
// verbatim. Refs are positional, so a decoded state is interchangeable
// with the one that was encoded: the same NameRef means the same name and
// the state can be the source or target of a substitution.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"rbcheck/internal/global"
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
	"rbcheck/internal/version"
)

// Current schema version - increment when the payload format changes.
const schemaVersion uint16 = 2

// ErrSchema is returned for snapshots written by an incompatible version.
var ErrSchema = errors.New("snapshot schema mismatch")

// Meta describes where a snapshot came from.
type Meta struct {
	Schema  uint16
	Tool    string
	RunID   string
	Created time.Time
	// Key is the content digest the snapshot was filed under, if any.
	Key Key
}

// NewMeta stamps a snapshot with the running tool version and a fresh run id.
func NewMeta(key Key) Meta {
	return Meta{
		Schema:  schemaVersion,
		Tool:    version.Version,
		RunID:   uuid.NewString(),
		Created: time.Now().UTC(),
		Key:     key,
	}
}

type payload struct {
	Meta    Meta
	Names   []names.Name
	Symbols []symbols.Symbol
	// Files holds slot 1 onwards; nil entries are empty slots.
	Files []*source.File
}

// Encode writes gs to w.
func Encode(w io.Writer, gs *global.GlobalState, meta Meta) error {
	meta.Schema = schemaVersion
	p := payload{
		Meta:    meta,
		Names:   gs.Names.All(),
		Symbols: gs.Symbols.All(),
	}
	for i := 1; i < gs.Files.Len(); i++ {
		p.Files = append(p.Files, gs.Files.Get(source.FileID(i))) // #nosec G115 -- bounded by Len
	}
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	if err := enc.Encode(&p); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot and rebuilds its global state. The state is
// sanity checked before it is returned.
func Decode(r io.Reader) (*global.GlobalState, Meta, error) {
	var p payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, Meta{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if p.Meta.Schema != schemaVersion {
		return nil, p.Meta, fmt.Errorf("%w: got %d, want %d", ErrSchema, p.Meta.Schema, schemaVersion)
	}
	nt, err := names.Restore(p.Names)
	if err != nil {
		return nil, p.Meta, err
	}
	st, err := symbols.Restore(p.Symbols, nt)
	if err != nil {
		return nil, p.Meta, err
	}
	files := source.NewFileSet()
	for i, f := range p.Files {
		if f == nil {
			continue
		}
		if want := i + 1; int(f.ID) != want {
			return nil, p.Meta, fmt.Errorf("decode snapshot: file slot %d holds id %d", want, f.ID)
		}
		files.EnterAt(f, f.ID)
	}
	gs := global.Restore(nt, st, files)
	if err := gs.SanityCheck(); err != nil {
		return nil, p.Meta, fmt.Errorf("decode snapshot: %w", err)
	}
	return gs, p.Meta, nil
}

// Key is the content digest a snapshot is cached under.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// IsZero reports the unset key.
func (k Key) IsZero() bool { return k == Key{} }

// Input is one file that contributes to a snapshot.
type Input struct {
	Path    string
	Content []byte
	Strict  source.StrictLevel
}

// Digest keys a set of inputs. It covers the schema, the tool version and
// every input's path, strictness and content, independent of input order.
func Digest(inputs []Input) Key {
	sorted := append([]Input(nil), inputs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	h := sha256.New()
	fmt.Fprintf(h, "rbcheck-snapshot/%d/%s\n", schemaVersion, version.Version)
	for _, in := range sorted {
		sum := sha256.Sum256(in.Content)
		fmt.Fprintf(h, "%s\x00%d\x00%x\n", in.Path, in.Strict, sum)
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

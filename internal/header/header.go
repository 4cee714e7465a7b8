// Package header decodes the 100-byte header at the start of an SQLite
// database file.
//
// Every field is a big-endian unsigned integer at a fixed offset. Decoding
// never fails once 100 bytes are available; whether the values make sense is
// answered separately by SeemsValid, so that corrupt or exotic files can
// still be inspected.
//
// Reference: https://sqlite.org/fileformat.html#the_database_header
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// Size is the length of the database header in bytes.
const Size = 100

// Magic is the header string every SQLite 3 database starts with.
const Magic = "SQLite format 3\x00"

// ErrMalformed is returned when fewer than Size bytes are available.
var ErrMalformed = errors.New("malformed database header")

// Field offsets.
const (
	offMagic          = 0
	offPageSize       = 16
	offWriteVersion   = 18
	offReadVersion    = 19
	offReservedSpace  = 20
	offMaxPayloadFrac = 21
	offMinPayloadFrac = 22
	offLeafFrac       = 23
	offChangeCounter  = 24
	offPageCount      = 28
	offFreelistStart  = 32
	offFreelistCount  = 36
	offSchemaCookie   = 40
	offSchemaFormat   = 44
	offCacheSize      = 48
	offLargestRoot    = 52
	offTextEncoding   = 56
	offUserVersion    = 60
	offIncrVacuum     = 64
	offAppID          = 68
	offReserved       = 72
	offVersionValid   = 92
	offSQLiteVersion  = 96
)

// Encoding is the text encoding declared in the header.
type Encoding uint32

const (
	EncodingUnknown Encoding = 0
	EncodingUTF8    Encoding = 1
	EncodingUTF16LE Encoding = 2
	EncodingUTF16BE Encoding = 3
)

func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "UTF-8"
	case EncodingUTF16LE:
		return "UTF-16le"
	case EncodingUTF16BE:
		return "UTF-16be"
	default:
		return "unknown"
	}
}

// VacuumMode is the auto-vacuum setting implied by the header.
type VacuumMode int

const (
	VacuumNone VacuumMode = iota
	VacuumFull
	VacuumIncremental
)

func (m VacuumMode) String() string {
	switch m {
	case VacuumFull:
		return "full"
	case VacuumIncremental:
		return "incremental"
	default:
		return "none"
	}
}

// Header holds the decoded database header fields.
type Header struct {
	Magic [16]byte

	// PageSize is in bytes. The on-disk value 1 is decoded as 65536.
	PageSize uint32

	WriteVersion  uint8
	ReadVersion   uint8
	ReservedSpace uint8

	// Payload fractions. Must be 64, 32 and 32.
	MaxEmbeddedPayload uint8
	MinEmbeddedPayload uint8
	LeafPayload        uint8

	ChangeCounter  uint32
	PageCount      uint32
	FreelistStart  uint32
	FreelistCount  uint32
	SchemaCookie   uint32
	SchemaFormat   uint32
	PageCacheSize  uint32
	LargestRoot    uint32 // non-zero only in auto-vacuum and incremental-vacuum modes
	TextEncoding   Encoding
	UserVersion    uint32
	IncrementalVac bool
	ApplicationID  uint32

	// Reserved for expansion; must be zero.
	Reserved [20]byte

	VersionValidFor uint32
	SQLiteVersion   uint32
}

// Parse decodes the first Size bytes of b.
func Parse(b []byte) (*Header, error) {
	if len(b) < Size {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformed, len(b), Size)
	}
	be := binary.BigEndian

	h := &Header{
		WriteVersion:       b[offWriteVersion],
		ReadVersion:        b[offReadVersion],
		ReservedSpace:      b[offReservedSpace],
		MaxEmbeddedPayload: b[offMaxPayloadFrac],
		MinEmbeddedPayload: b[offMinPayloadFrac],
		LeafPayload:        b[offLeafFrac],
		ChangeCounter:      be.Uint32(b[offChangeCounter:]),
		PageCount:          be.Uint32(b[offPageCount:]),
		FreelistStart:      be.Uint32(b[offFreelistStart:]),
		FreelistCount:      be.Uint32(b[offFreelistCount:]),
		SchemaCookie:       be.Uint32(b[offSchemaCookie:]),
		SchemaFormat:       be.Uint32(b[offSchemaFormat:]),
		PageCacheSize:      be.Uint32(b[offCacheSize:]),
		LargestRoot:        be.Uint32(b[offLargestRoot:]),
		UserVersion:        be.Uint32(b[offUserVersion:]),
		IncrementalVac:     be.Uint32(b[offIncrVacuum:]) != 0,
		ApplicationID:      be.Uint32(b[offAppID:]),
		VersionValidFor:    be.Uint32(b[offVersionValid:]),
		SQLiteVersion:      be.Uint32(b[offSQLiteVersion:]),
	}
	copy(h.Magic[:], b[offMagic:offMagic+16])
	copy(h.Reserved[:], b[offReserved:offReserved+20])

	h.PageSize = uint32(be.Uint16(b[offPageSize:]))
	if h.PageSize == 1 {
		h.PageSize = 65536
	}

	switch enc := Encoding(be.Uint32(b[offTextEncoding:])); enc {
	case EncodingUTF8, EncodingUTF16LE, EncodingUTF16BE:
		h.TextEncoding = enc
	default:
		h.TextEncoding = EncodingUnknown
	}

	return h, nil
}

// Read parses the header of the named file in fsys.
func Read(fsys billy.Filesystem, name string) (*Header, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }() // read-only

	buf := make([]byte, Size)
	n, err := io.ReadFull(f, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s is %d bytes long", ErrMalformed, name, n)
		}
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}
	return Parse(buf)
}

// SeemsValid reports whether every field with a documented constraint
// respects it.
func (h *Header) SeemsValid() bool {
	if h == nil {
		return false
	}
	return pageSizeValid(h.PageSize) &&
		versionValid(h.ReadVersion) &&
		versionValid(h.WriteVersion) &&
		h.MaxEmbeddedPayload == 64 &&
		h.MinEmbeddedPayload == 32 &&
		h.LeafPayload == 32 &&
		h.SchemaFormat >= 1 && h.SchemaFormat <= 4 &&
		h.TextEncoding != EncodingUnknown &&
		h.ReservedIsZero()
}

// HasMagic reports whether the file starts with the SQLite 3 header string.
func (h *Header) HasMagic() bool {
	return string(h.Magic[:]) == Magic
}

// ReservedIsZero reports whether the 20 bytes reserved for expansion are all
// zero.
func (h *Header) ReservedIsZero() bool {
	return h.Reserved == [20]byte{}
}

// AutoVacuum derives the vacuum mode. The largest root page field is only
// set when auto-vacuum or incremental-vacuum is enabled.
func (h *Header) AutoVacuum() VacuumMode {
	switch {
	case h.LargestRoot == 0:
		return VacuumNone
	case h.IncrementalVac:
		return VacuumIncremental
	default:
		return VacuumFull
	}
}

func (h *Header) String() string {
	magic := strings.TrimRight(string(h.Magic[:]), "\x00")
	lines := []string{
		fmt.Sprintf("Header seems valid? %t", h.SeemsValid()),
		fmt.Sprintf("Header string: %s", magic),
		fmt.Sprintf("Page size: %d", h.PageSize),
		fmt.Sprintf("Format read version: %d", h.ReadVersion),
		fmt.Sprintf("Format write version: %d", h.WriteVersion),
		fmt.Sprintf("Reserved space: %d", h.ReservedSpace),
		fmt.Sprintf("Max. embedded payload: %d", h.MaxEmbeddedPayload),
		fmt.Sprintf("Min. embedded payload: %d", h.MinEmbeddedPayload),
		fmt.Sprintf("Leaf payload: %d", h.LeafPayload),
		fmt.Sprintf("Change counter: %d", h.ChangeCounter),
		fmt.Sprintf("Page count: %d", h.PageCount),
		fmt.Sprintf("Freelist start page: %d", h.FreelistStart),
		fmt.Sprintf("Freelist size: %d", h.FreelistCount),
		fmt.Sprintf("Schema cookie: %d", h.SchemaCookie),
		fmt.Sprintf("Schema format: %d", h.SchemaFormat),
		fmt.Sprintf("Page cache size: %d", h.PageCacheSize),
		fmt.Sprintf("Largest b-tree root page: %d", h.LargestRoot),
		fmt.Sprintf("Text encoding: %s", h.TextEncoding),
		fmt.Sprintf("User version: %d", h.UserVersion),
		fmt.Sprintf("Incremental vacuum mode: %t", h.IncrementalVac),
		fmt.Sprintf("Application id: %d", h.ApplicationID),
		fmt.Sprintf("Version valid for: %d", h.VersionValidFor),
		fmt.Sprintf("SQLite version number: %d", h.SQLiteVersion),
	}
	return strings.Join(lines, "\n")
}

func pageSizeValid(n uint32) bool {
	return n >= 512 && n <= 65536 && bits.OnesCount32(n) == 1
}

func versionValid(v uint8) bool {
	return v == 1 || v == 2
}

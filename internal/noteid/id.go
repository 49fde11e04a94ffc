// Package noteid implements the compact UUID identifier type used
// throughout the storage engine for notes, folders, profiles, and
// instances. It consolidates the dual on-disk representation (22-char
// base64url compact form, canonical on disk; the hyphenated
// xxxxxxxx-xxxx-... form accepted on read) behind a single comparable
// type so callers never compare raw strings.
//
// This is a leaf package with one external dependency, google/uuid, used
// for random generation and canonical-form parsing.
package noteid

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CompactLen is the length of the base64url (no padding) encoding of 16
// raw bytes: ceil(16*8/6) = 22 (with the final 2-bit group dropped since
// there is no padding character). Filename grammars that embed a compact
// ID (internal/logformat) rely on this being a fixed width: the
// base64url alphabet includes '_', so splitting a filename stem on '_'
// would be ambiguous without a known field width.
const CompactLen = 22

const compactLen = CompactLen

// ID is a 128-bit identifier. Equality is defined over the raw bytes,
// never the string form (spec: "Compact UUIDs"). The zero ID represents
// an absent/unset identifier (e.g. a note with no folder).
type ID struct {
	bytes [16]byte
}

// New generates a fresh random (v4) ID.
func New() ID {
	return ID{bytes: uuid.New()}
}

// Nil is the zero-value ID, used where spec.md's data model marks a field
// optional (e.g. Note.folderId).
var Nil = ID{}

// FromBytes wraps 16 raw bytes as an ID, for callers (e.g. logformat's
// snapshot codec) that already hold the decoded bytes and do not need
// text parsing.
func FromBytes(b [16]byte) ID {
	return ID{bytes: b}
}

// Parse accepts both the compact 22-char base64url form and the canonical
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form. Both are normalization-
// equivalent; the result compares equal regardless of which form produced
// it.
func Parse(s string) (ID, error) {
	if len(s) == compactLen {
		raw, err := base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return ID{}, fmt.Errorf("noteid: invalid compact id %q: %w", s, err)
		}

		if len(raw) != 16 {
			return ID{}, fmt.Errorf("noteid: invalid compact id %q: decoded to %d bytes, want 16", s, len(raw))
		}

		var id ID
		copy(id.bytes[:], raw)

		return id, nil
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("noteid: invalid id %q: %w", s, err)
	}

	return ID{bytes: u}, nil
}

// MustParse is Parse, panicking on error. Intended for tests and constant
// fixture IDs (e.g. spec.md's literal scenario values), never for
// untrusted input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return id
}

// String returns the canonical on-disk form: the 22-char base64url
// encoding of the raw bytes.
func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id.bytes[:])
}

// Canonical returns the hyphenated xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
// form, useful for display and for interoperating with tools that expect
// standard UUID text.
func (id ID) Canonical() string {
	return uuid.UUID(id.bytes).String()
}

// Bytes returns the 16 raw bytes.
func (id ID) Bytes() [16]byte {
	return id.bytes
}

// IsNil reports whether this is the zero-value ID.
func (id ID) IsNil() bool {
	return id == Nil
}

// Equal reports whether two IDs have identical raw bytes.
func (id ID) Equal(other ID) bool {
	return id.bytes == other.bytes
}

// MarshalText implements encoding.TextMarshaler, emitting the compact
// on-disk form (spec: "emit only the compact form on write").
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting either form.
func (id *ID) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*id = Nil

		return nil
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// Scan implements sql.Scanner for reading IDs out of the derived search
// index (internal/searchindex). SQL NULL produces the Nil ID.
func (id *ID) Scan(src any) error {
	if src == nil {
		*id = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}

		*id = parsed

		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}

		*id = parsed

		return nil
	default:
		return fmt.Errorf("noteid.ID.Scan: unsupported type %T", src)
	}
}

// Value implements driver.Valuer, writing the compact form. The Nil ID
// writes SQL NULL.
func (id ID) Value() (driver.Value, error) {
	if id.IsNil() {
		return nil, nil
	}

	return id.String(), nil
}

// Compile-time interface assertions.
var (
	_ encoding.TextMarshaler   = ID{}
	_ encoding.TextUnmarshaler = (*ID)(nil)
	_ fmt.Stringer             = ID{}
	_ driver.Valuer            = ID{}
	_ sql.Scanner              = (*ID)(nil)
)

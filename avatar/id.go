package avatar

import (
	"bytes"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const idPrefix = "avtr_"

var errBadID = errors.New("avatar: invalid identifier")

// ID is the identifier of an avatar, and so of the image uploaded to it.
// The textual form is the "avtr_" prefix followed by a UUID.
type ID [16]byte

// EmptyID marks the end of a chain of images.
var EmptyID = ID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// ParseID parses the textual form of an identifier.
func ParseID(s string) (ID, error) {
	// Only the hyphenated form, uuid.Parse accepts others
	if len(s) != len(idPrefix)+36 || !strings.HasPrefix(s, idPrefix) {
		return ID{}, errBadID
	}
	u, err := uuid.Parse(strings.TrimPrefix(s, idPrefix))
	if err != nil {
		return ID{}, errBadID
	}
	return ID(u), nil
}

// MustParseID is like ParseID but panics if s cannot be parsed.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsEmpty reports whether id is EmptyID.
func (id ID) IsEmpty() bool {
	return bytes.Equal(id[:], EmptyID[:])
}

func (id ID) String() string {
	return idPrefix + uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

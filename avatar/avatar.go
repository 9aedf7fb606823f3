/*
Package avatar implements an encoder and decoder for text packed into the
pixels of avatar thumbnail images.

The format is defined as 128 by 96 pixels exactly, 8-bit RGBA. Pixels are
visited starting at the top right corner, moving right to left along each row
and wrapping to the right hand end of the next row down.

The first seven pixels visited form the header: the number of data bytes held
by the image as a big-endian 32-bit value, four pixels holding the 16 byte
identifier of the next image in the chain, an all-zero reserved pixel and a
metadata pixel of data mode, major version, minor version and encoder
variant. Every following pixel holds four data bytes with the final pixel
padded out with 0x10 bytes. A payload larger than one image is split across a
chain of images, the last of which names EmptyID as the next image.
*/
package avatar

import "errors"

const (
	// Width is the width in pixels of every image.
	Width = 128
	// Height is the height in pixels of every image.
	Height = 96

	numPixels = Width * Height
	idPixels  = 4

	// HeaderPixels is the number of pixels occupied by the header.
	HeaderPixels = 1 + idPixels + 1 + 1

	// Capacity is the number of data bytes a single image can hold.
	Capacity = (numPixels - HeaderPixels) * 4

	filler     = 0x10
	background = 0xff
)

// Data modes.
const (
	ModeUTF8 uint8 = iota
)

const (
	// MajorVersion is the format major version written by Encode. Decode
	// refuses any image with a different major version.
	MajorVersion uint8 = 3
	// MinorVersion is the format minor version written by Encode.
	MinorVersion uint8 = 0

	// VariantRoster identifies this encoder.
	VariantRoster uint8 = 0
)

var (
	// ErrNotEnoughSlots is returned when fewer image identifiers are
	// supplied than there are images to produce.
	ErrNotEnoughSlots = errors.New("avatar: not enough image slots")
	// ErrTooMuch is returned when the data does not fit in an image.
	ErrTooMuch = errors.New("avatar: too much image data")
	// ErrWrongSize is returned when decoding an image that isn't Width by
	// Height pixels.
	ErrWrongSize = errors.New("avatar: image is wrong size")
	// ErrUnsupportedVersion is returned when decoding an image with an
	// unknown major version.
	ErrUnsupportedVersion = errors.New("avatar: unsupported format version")
	// ErrBadLength is returned when the length in the header exceeds
	// Capacity.
	ErrBadLength = errors.New("avatar: invalid data length")
	// ErrCycle is returned when a chain of images refers back to an image
	// already visited.
	ErrCycle = errors.New("avatar: image chain contains a cycle")
)

// Metadata is the contents of the metadata header pixel.
type Metadata struct {
	Mode    uint8
	Major   uint8
	Minor   uint8
	Variant uint8
}

var current = Metadata{
	Mode:    ModeUTF8,
	Major:   MajorVersion,
	Minor:   MinorVersion,
	Variant: VariantRoster,
}

// Chunks returns the number of images needed to hold n bytes. An empty
// payload still needs one image.
func Chunks(n int) int {
	if n <= Capacity {
		return 1
	}
	return (n + Capacity - 1) / Capacity
}

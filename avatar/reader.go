package avatar

import (
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Chunk is the decoded contents of a single image.
type Chunk struct {
	// Length is the number of data bytes recorded in the header.
	Length uint32
	// Next is the identifier of the following image, EmptyID if this is
	// the last image in the chain.
	Next     ID
	Metadata Metadata
	// Data holds exactly Length bytes, without any padding.
	Data []byte
}

type decoder struct {
	m    image.Image
	min  image.Point
	x, y int
}

func (d *decoder) read() [4]byte {
	c := color.NRGBAModel.Convert(d.m.At(d.min.X+d.x, d.min.Y+d.y)).(color.NRGBA)

	d.x--
	if d.x < 0 {
		d.x = Width - 1
		d.y++
	}

	return [4]byte{c.R, c.G, c.B, c.A}
}

func (d *decoder) decode(m image.Image) (*Chunk, error) {
	b := m.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return nil, ErrWrongSize
	}

	d.m = m
	d.min = b.Min
	d.x = Width - 1

	c := new(Chunk)

	p := d.read()
	c.Length = binary.BigEndian.Uint32(p[:])

	for i := 0; i < idPixels; i++ {
		p = d.read()
		copy(c.Next[i*4:], p[:])
	}

	// Reserved
	d.read()

	p = d.read()
	c.Metadata = Metadata{p[0], p[1], p[2], p[3]}
	if c.Metadata.Major != MajorVersion {
		return nil, ErrUnsupportedVersion
	}

	if c.Length > Capacity {
		return nil, ErrBadLength
	}

	c.Data = make([]byte, 0, c.Length+3)
	for uint32(len(c.Data)) < c.Length {
		p = d.read()
		c.Data = append(c.Data, p[:]...)
	}
	c.Data = c.Data[:c.Length]

	return c, nil
}

// DecodeImage reads the header and data from an already decoded image.
func DecodeImage(m image.Image) (*Chunk, error) {
	var d decoder
	return d.decode(m)
}

// Decode reads a PNG image from r and returns its contents.
func Decode(r io.Reader) (*Chunk, error) {
	m, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	return DecodeImage(m)
}

// A Fetcher retrieves the image previously uploaded for an identifier.
type Fetcher interface {
	Open(ctx context.Context, id ID) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id ID) (io.ReadCloser, error)

// Open calls f(ctx, id).
func (f FetcherFunc) Open(ctx context.Context, id ID) (io.ReadCloser, error) {
	return f(ctx, id)
}

func decodeFrom(ctx context.Context, f Fetcher, id ID) (*Chunk, error) {
	rc, err := f.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Decode(rc)
}

// DecodeChain decodes the image named by first and every image following
// it, returning the concatenated data.
func DecodeChain(ctx context.Context, f Fetcher, first ID) ([]byte, error) {
	var payload []byte
	seen := make(map[ID]struct{})
	for id := first; !id.IsEmpty(); {
		if _, ok := seen[id]; ok {
			return nil, ErrCycle
		}
		seen[id] = struct{}{}

		c, err := decodeFrom(ctx, f, id)
		if err != nil {
			return nil, err
		}
		payload = append(payload, c.Data...)
		id = c.Next
	}
	return payload, nil
}

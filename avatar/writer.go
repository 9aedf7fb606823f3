package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
)

type encoder struct {
	m    *image.NRGBA
	x, y int
}

func (e *encoder) put(p [4]byte) error {
	if e.y >= Height {
		return ErrTooMuch
	}
	i := e.m.PixOffset(e.x, e.y)
	copy(e.m.Pix[i:i+4], p[:])

	e.x--
	if e.x < 0 {
		e.x = Width - 1
		e.y++
	}
	return nil
}

func (e *encoder) encode(chunk []byte, next ID) error {
	n := uint32(len(chunk))
	if err := e.put([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}); err != nil {
		return err
	}

	for i := 0; i < idPixels; i++ {
		var p [4]byte
		copy(p[:], next[i*4:])
		if err := e.put(p); err != nil {
			return err
		}
	}

	// Reserved
	if err := e.put([4]byte{}); err != nil {
		return err
	}

	if err := e.put([4]byte{current.Mode, current.Major, current.Minor, current.Variant}); err != nil {
		return err
	}

	for i := 0; i < len(chunk); i += 4 {
		p := [4]byte{filler, filler, filler, filler}
		copy(p[:], chunk[i:])
		if err := e.put(p); err != nil {
			return err
		}
	}

	return nil
}

// Render draws chunk into a new image with a header naming next as the
// following image in the chain.
func Render(chunk []byte, next ID) (*image.NRGBA, error) {
	m := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	for i := range m.Pix {
		m.Pix[i] = background
	}

	e := encoder{m: m, x: Width - 1}
	if err := e.encode(chunk, next); err != nil {
		return nil, err
	}

	return m, nil
}

// EncodeImage writes chunk to w as a single PNG image naming next as the
// following image in the chain.
func EncodeImage(w io.Writer, chunk []byte, next ID) error {
	m, err := Render(chunk, next)
	if err != nil {
		return err
	}
	return png.Encode(w, m)
}

// Encode splits payload across as many PNG images as needed. The image at
// index i is destined for slots[i] and names slots[i+1] as the next image,
// the final image names EmptyID. There must be at least as many slots as
// images.
func Encode(payload []byte, slots []ID) ([][]byte, error) {
	n := Chunks(len(payload))
	if len(slots) < n {
		return nil, fmt.Errorf("%w: %d bytes needs %d, have %d", ErrNotEnoughSlots, len(payload), n, len(slots))
	}

	images := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		lo := i * Capacity
		hi := min(lo+Capacity, len(payload))

		next := EmptyID
		if i < n-1 {
			next = slots[i+1]
		}

		b := new(bytes.Buffer)
		if err := EncodeImage(b, payload[lo:hi], next); err != nil {
			return nil, err
		}
		images = append(images, b.Bytes())
	}

	return images, nil
}

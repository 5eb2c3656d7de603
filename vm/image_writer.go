package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// ImageVersion is written into the header of new images.
const ImageVersion byte = 1

// ErrUnserializable is returned for values that have no constant encoding
// (cells, functions, modules, handles).
var ErrUnserializable = errors.New("value cannot be serialized")

// ---------------------------------------------------------------------------
// ImageWriter: encodes constants in the format ImageReader decodes
// ---------------------------------------------------------------------------

// ImageWriter accumulates an encoded image.
type ImageWriter struct {
	buf bytes.Buffer
}

// NewImageWriter creates an empty writer.
func NewImageWriter() *ImageWriter {
	return &ImageWriter{}
}

func (w *ImageWriter) writeInt32(n int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(n))
	w.buf.Write(b[:])
}

func (w *ImageWriter) writeString(s string) {
	w.writeInt32(int32(len(s)))
	w.buf.WriteString(s)
}

// WriteHeader writes the magic and the given header fields.
func (w *ImageWriter) WriteHeader(h ImageHeader) {
	w.buf.WriteString(ImageMagic)
	w.buf.WriteByte(h.Version)
	w.buf.WriteByte(h.Flags)
	w.writeInt32(h.Timestamp)
}

// WriteConstant appends one tagged constant.
func (w *ImageWriter) WriteConstant(v Value) error {
	switch v.Kind() {
	case KindNil:
		w.buf.WriteByte(TagNil)
	case KindBoolean:
		w.buf.WriteByte(TagBool)
		if v.Bool() {
			w.buf.WriteByte(1)
		} else {
			w.buf.WriteByte(0)
		}
	case KindInteger:
		w.buf.WriteByte(TagInt)
		w.writeInt32(v.Int())
	case KindFloat:
		w.buf.WriteByte(TagFloat)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Float()))
		w.buf.Write(b[:])
	case KindString:
		w.buf.WriteByte(TagString)
		w.writeString(v.Str())
	case KindList:
		items := v.List().Items
		w.buf.WriteByte(TagList)
		w.writeInt32(int32(len(items)))
		for _, item := range items {
			if err := w.WriteConstant(item); err != nil {
				return err
			}
		}
	case KindDict:
		entries := v.Dict().Entries()
		w.buf.WriteByte(TagDict)
		w.writeInt32(int32(len(entries)))
		for _, e := range entries {
			if err := w.WriteConstant(e.Key); err != nil {
				return err
			}
			if err := w.WriteConstant(e.Value); err != nil {
				return err
			}
		}
	case KindCode:
		w.buf.WriteByte(TagCode)
		return w.WriteCode(v.Code())
	default:
		return fmt.Errorf("%w: %s", ErrUnserializable, v.Kind())
	}
	return nil
}

// WriteCode appends a code object body. Free and cell variable names have
// no place in the format and are not written.
func (w *ImageWriter) WriteCode(c *Code) error {
	if len(c.Params) > math.MaxUint8 {
		return fmt.Errorf("code %q: %d parameters exceed the format limit", c.Name, len(c.Params))
	}
	w.writeString(c.Name)
	w.buf.WriteByte(byte(len(c.Params)))
	for _, p := range c.Params {
		w.writeString(p)
	}
	w.writeInt32(int32(len(c.Constants)))
	for _, k := range c.Constants {
		if err := w.WriteConstant(k); err != nil {
			return fmt.Errorf("code %q: %w", c.Name, err)
		}
	}
	w.writeInt32(int32(len(c.Instructions)))
	for i, ins := range c.Instructions {
		w.buf.WriteByte(byte(ins.Op))
		if err := w.WriteConstant(ins.Arg); err != nil {
			return fmt.Errorf("code %q instruction %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// Bytes returns the encoded image.
func (w *ImageWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteTo writes the encoded image to out.
func (w *ImageWriter) WriteTo(out io.Writer) (int64, error) {
	return w.buf.WriteTo(out)
}

// ---------------------------------------------------------------------------
// Convenience encoders
// ---------------------------------------------------------------------------

// EncodeImage returns a complete image whose root is c.
func EncodeImage(c *Code) ([]byte, error) {
	w := NewImageWriter()
	w.WriteHeader(ImageHeader{Version: ImageVersion, Timestamp: int32(time.Now().Unix())})
	if err := w.WriteConstant(FromCode(c)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// SaveImage writes the image for c to path.
func SaveImage(path string, c *Code) error {
	data, err := EncodeImage(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf8"
)

// ImageMagic opens every program image.
const ImageMagic = "VZOEL FOXS"

// Header size constants
const (
	imageMagicSize     = len(ImageMagic)
	imageVersionSize   = 1
	imageFlagsSize     = 1
	imageTimestampSize = 4
	imageHeaderSize    = imageMagicSize + imageVersionSize + imageFlagsSize + imageTimestampSize

	// maxConstantDepth bounds List/Dict/Code nesting so hostile input cannot
	// exhaust the Go stack.
	maxConstantDepth = 512
)

// Constant tags
const (
	TagNil    byte = 1
	TagBool   byte = 2
	TagInt    byte = 3
	TagFloat  byte = 4
	TagString byte = 5
	TagList   byte = 6
	TagCode   byte = 7
	TagDict   byte = 8
)

// ---------------------------------------------------------------------------
// Image Error Types
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic   = errors.New("invalid magic: expected " + ImageMagic)
	ErrUnexpectedEOF  = errors.New("unexpected end of image data")
	ErrNegativeLength = errors.New("negative length")
	ErrInvalidUTF8    = errors.New("string is not valid UTF-8")
	ErrUnknownTag     = errors.New("unknown constant tag")
	ErrNestingTooDeep = errors.New("constants nested too deeply")
	ErrRootNotCode    = errors.New("root constant is not a code object")
)

// ImageHeader contains the parsed header of a program image.
type ImageHeader struct {
	Version   byte
	Flags     byte
	Timestamp int32
}

// ---------------------------------------------------------------------------
// ImageReader: decodes constants from a byte buffer
// ---------------------------------------------------------------------------

// ImageReader walks a program image with a cursor. Every read either
// advances the cursor or returns an error; it never panics on bad input.
type ImageReader struct {
	data   []byte
	offset int
	depth  int
}

// NewImageReader creates a reader positioned at the start of data.
func NewImageReader(data []byte) *ImageReader {
	return &ImageReader{data: data}
}

// Offset returns the current cursor position.
func (ir *ImageReader) Offset() int {
	return ir.offset
}

// Remaining returns the number of unread bytes.
func (ir *ImageReader) Remaining() int {
	return len(ir.data) - ir.offset
}

func (ir *ImageReader) eof(what string) error {
	return fmt.Errorf("%w: reading %s at offset %d", ErrUnexpectedEOF, what, ir.offset)
}

func (ir *ImageReader) readByte(what string) (byte, error) {
	if ir.offset+1 > len(ir.data) {
		return 0, ir.eof(what)
	}
	b := ir.data[ir.offset]
	ir.offset++
	return b, nil
}

func (ir *ImageReader) readInt32(what string) (int32, error) {
	if ir.offset+4 > len(ir.data) {
		return 0, ir.eof(what)
	}
	v := int32(binary.LittleEndian.Uint32(ir.data[ir.offset:]))
	ir.offset += 4
	return v, nil
}

func (ir *ImageReader) readLength(what string) (int, error) {
	start := ir.offset
	n, err := ir.readInt32(what)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s %d at offset %d", ErrNegativeLength, what, n, start)
	}
	return int(n), nil
}

func (ir *ImageReader) readBytes(n int, what string) ([]byte, error) {
	if n > ir.Remaining() {
		return nil, ir.eof(what)
	}
	b := ir.data[ir.offset : ir.offset+n]
	ir.offset += n
	return b, nil
}

func (ir *ImageReader) readString(what string) (string, error) {
	n, err := ir.readLength(what + " length")
	if err != nil {
		return "", err
	}
	start := ir.offset
	b, err := ir.readBytes(n, what)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s at offset %d", ErrInvalidUTF8, what, start)
	}
	return string(b), nil
}

// ReadHeader reads and validates the fixed-size image header.
func (ir *ImageReader) ReadHeader() (*ImageHeader, error) {
	magic, err := ir.readBytes(imageMagicSize, "magic")
	if err != nil {
		return nil, err
	}
	if string(magic) != ImageMagic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}
	h := &ImageHeader{}
	if h.Version, err = ir.readByte("version"); err != nil {
		return nil, err
	}
	if h.Flags, err = ir.readByte("flags"); err != nil {
		return nil, err
	}
	if h.Timestamp, err = ir.readInt32("timestamp"); err != nil {
		return nil, err
	}
	return h, nil
}

// ReadConstant decodes one tagged constant at the cursor.
func (ir *ImageReader) ReadConstant() (Value, error) {
	start := ir.offset
	tag, err := ir.readByte("constant tag")
	if err != nil {
		return Nil, err
	}

	switch tag {
	case TagNil:
		return Nil, nil

	case TagBool:
		b, err := ir.readByte("boolean")
		if err != nil {
			return Nil, err
		}
		return FromBool(b != 0), nil

	case TagInt:
		n, err := ir.readInt32("integer")
		if err != nil {
			return Nil, err
		}
		return FromInt(n), nil

	case TagFloat:
		b, err := ir.readBytes(8, "float")
		if err != nil {
			return Nil, err
		}
		return FromFloat(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil

	case TagString:
		s, err := ir.readString("string")
		if err != nil {
			return Nil, err
		}
		return FromString(s), nil

	case TagList:
		if err := ir.enter(); err != nil {
			return Nil, err
		}
		defer ir.leave()
		n, err := ir.readLength("list count")
		if err != nil {
			return Nil, err
		}
		items, err := ir.readConstants(n)
		if err != nil {
			return Nil, err
		}
		return FromList(&List{Items: items}), nil

	case TagCode:
		if err := ir.enter(); err != nil {
			return Nil, err
		}
		defer ir.leave()
		c, err := ir.ReadCode()
		if err != nil {
			return Nil, err
		}
		return FromCode(c), nil

	case TagDict:
		if err := ir.enter(); err != nil {
			return Nil, err
		}
		defer ir.leave()
		n, err := ir.readLength("dict count")
		if err != nil {
			return Nil, err
		}
		d := NewDict()
		for i := 0; i < n; i++ {
			k, err := ir.ReadConstant()
			if err != nil {
				return Nil, err
			}
			v, err := ir.ReadConstant()
			if err != nil {
				return Nil, err
			}
			d.appendEntry(k, v)
		}
		return FromDict(d), nil
	}

	return Nil, fmt.Errorf("%w: %d at offset %d", ErrUnknownTag, tag, start)
}

// readConstants reads n constants. The slice grows as data is decoded
// rather than trusting n for the allocation.
func (ir *ImageReader) readConstants(n int) ([]Value, error) {
	var out []Value
	for i := 0; i < n; i++ {
		v, err := ir.ReadConstant()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadCode decodes a code object body (the part after its tag).
func (ir *ImageReader) ReadCode() (*Code, error) {
	name, err := ir.readString("code name")
	if err != nil {
		return nil, err
	}

	c := &Code{Name: name}

	nparams, err := ir.readByte("parameter count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(nparams); i++ {
		p, err := ir.readString("parameter name")
		if err != nil {
			return nil, fmt.Errorf("code %q: %w", name, err)
		}
		c.Params = append(c.Params, p)
	}

	nconsts, err := ir.readLength("constant count")
	if err != nil {
		return nil, fmt.Errorf("code %q: %w", name, err)
	}
	if c.Constants, err = ir.readConstants(nconsts); err != nil {
		return nil, fmt.Errorf("code %q: %w", name, err)
	}

	ninstrs, err := ir.readLength("instruction count")
	if err != nil {
		return nil, fmt.Errorf("code %q: %w", name, err)
	}
	for i := 0; i < ninstrs; i++ {
		op, err := ir.readByte("opcode")
		if err != nil {
			return nil, fmt.Errorf("code %q: %w", name, err)
		}
		arg, err := ir.ReadConstant()
		if err != nil {
			return nil, fmt.Errorf("code %q instruction %d: %w", name, i, err)
		}
		c.Instructions = append(c.Instructions, Instruction{Op: Opcode(op), Arg: arg})
	}

	return c, nil
}

func (ir *ImageReader) enter() error {
	if ir.depth >= maxConstantDepth {
		return fmt.Errorf("%w at offset %d", ErrNestingTooDeep, ir.offset)
	}
	ir.depth++
	return nil
}

func (ir *ImageReader) leave() {
	ir.depth--
}

// ---------------------------------------------------------------------------
// Image loading
// ---------------------------------------------------------------------------

// LoadImage parses a complete program image: header, then a root constant
// that must be a code object.
func LoadImage(data []byte) (*ImageHeader, *Code, error) {
	ir := NewImageReader(data)
	h, err := ir.ReadHeader()
	if err != nil {
		return nil, nil, err
	}
	root, err := ir.ReadConstant()
	if err != nil {
		return nil, nil, err
	}
	if !root.IsCode() {
		return nil, nil, fmt.Errorf("%w: got %s", ErrRootNotCode, root.Kind())
	}
	return h, root.Code(), nil
}

// LoadImageFrom reads r to the end and parses it with LoadImage.
func LoadImageFrom(r io.Reader) (*ImageHeader, *Code, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return LoadImage(data)
}

// LoadImageFile reads and parses the image at path.
func LoadImageFile(path string) (*ImageHeader, *Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	h, c, err := LoadImage(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, c, nil
}

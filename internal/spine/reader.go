package spine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrUnexpectedEOF = errors.New("spine: unexpected end of skeleton data")
	ErrCorruptData   = errors.New("spine: corrupt skeleton data")
)

// maxZeroRead bounds the zero value returned by a failed read.
const maxZeroRead = 64

// reader decodes the big-endian Spine binary format. The first error sticks,
// every later read returns a zero value.
type reader struct {
	data    []byte
	pos     int
	err     error
	strings []string
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) readByte(count int) []byte {
	if r.err != nil {
		return zeroBytes(count)
	}
	if count < 0 || count > len(r.data)-r.pos {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d", ErrUnexpectedEOF, count, r.pos))
		return zeroBytes(count)
	}
	res := r.data[r.pos : r.pos+count]
	r.pos += count
	return res
}

func zeroBytes(count int) []byte {
	return make([]byte, min(max(count, 0), maxZeroRead))
}

func (r *reader) readU8() uint8 {
	return r.readByte(1)[0]
}

func (r *reader) readBool() bool {
	return r.readU8() != 0
}

func (r *reader) readU16() uint16 {
	return binary.BigEndian.Uint16(r.readByte(2))
}

func (r *reader) readI32() int32 {
	return int32(binary.BigEndian.Uint32(r.readByte(4)))
}

func (r *reader) readF4() float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(r.readByte(4)))
}

func (r *reader) readVec2() mgl32.Vec2 {
	return mgl32.Vec2{r.readF4(), r.readF4()}
}

// readVarint reads the 7-bit packed integer used everywhere in the format.
func (r *reader) readVarint(optimizePositive bool) int {
	temp := uint32(r.readU8())
	res := temp & 0x7F
	if temp&0x80 != 0 {
		temp = uint32(r.readU8())
		res |= (temp & 0x7F) << 7
		if temp&0x80 != 0 {
			temp = uint32(r.readU8())
			res |= (temp & 0x7F) << 14
			if temp&0x80 != 0 {
				temp = uint32(r.readU8())
				res |= (temp & 0x7F) << 21
				if temp&0x80 != 0 {
					temp = uint32(r.readU8())
					res |= temp << 28
				}
			}
		}
	}
	if !optimizePositive {
		res = (res >> 1) ^ -(res & 1)
	}
	return int(int32(res))
}

func (r *reader) readInt() int {
	return r.readVarint(true)
}

// readCount reads a length or element count. Every counted element takes at
// least one byte, so a count beyond the remaining data is corrupt.
func (r *reader) readCount() int {
	count := r.readInt()
	if r.err != nil {
		return 0
	}
	switch {
	case count < 0:
		r.fail(fmt.Errorf("%w: negative count %d at offset %d", ErrCorruptData, count, r.pos))
		return 0
	case count > len(r.data)-r.pos:
		r.fail(fmt.Errorf("%w: count %d at offset %d, %d bytes left", ErrUnexpectedEOF, count, r.pos, len(r.data)-r.pos))
		return 0
	}
	return count
}

// readIndex reads a non-negative index and checks it against limit.
func (r *reader) readIndex(limit int, what string) int {
	idx := r.readInt()
	if r.err == nil && (idx < 0 || idx >= limit) {
		r.fail(fmt.Errorf("spine: %s index %d out of range [0,%d)", what, idx, limit))
		return 0
	}
	return idx
}

func (r *reader) readClr() mgl32.Vec4 {
	data := r.readByte(4)
	return mgl32.Vec4{
		float32(data[0]) / 0xFF,
		float32(data[1]) / 0xFF,
		float32(data[2]) / 0xFF,
		float32(data[3]) / 0xFF,
	}
}

// readStr returns false for the null string.
func (r *reader) readStr() (string, bool) {
	count := r.readCount()
	switch {
	case count == 0:
		return "", false
	case count == 1:
		return "", true
	}
	// the length counts characters, not bytes
	chars := count - 1
	buf := make([]byte, 0, chars)
	for i := 0; i < chars && r.err == nil; i++ {
		b := r.readU8()
		switch b >> 4 {
		case 12, 13:
			buf = append(buf, b)
			buf = append(buf, r.readByte(1)...)
		case 14:
			buf = append(buf, b)
			buf = append(buf, r.readByte(2)...)
		default:
			buf = append(buf, b)
		}
	}
	if !utf8.Valid(buf) {
		r.fail(fmt.Errorf("spine: invalid utf-8 string at offset %d", r.pos))
	}
	return string(buf), true
}

func (r *reader) readString() string {
	res, _ := r.readStr()
	return res
}

func (r *reader) readRefStr() string {
	idx := r.readInt() - 1
	if idx < 0 {
		return ""
	}
	if idx >= len(r.strings) {
		r.fail(fmt.Errorf("spine: string ref %d out of range", idx))
		return ""
	}
	return r.strings[idx]
}

func (r *reader) readCurve() *Curve {
	res := &Curve{Type: r.readU8()}
	switch res.Type {
	case CurveLinear, CurveStepped:
	case CurveBezier:
		res.Data = [2]mgl32.Vec2{r.readVec2(), r.readVec2()}
	default:
		r.fail(fmt.Errorf("spine: unknown curve type %d", res.Type))
	}
	return res
}

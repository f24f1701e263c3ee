package search

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// keyBuf accumulates the content of a value for hashing.
type keyBuf []byte

func (b keyBuf) u32(v uint32) keyBuf { return binary.LittleEndian.AppendUint32(b, v) }
func (b keyBuf) i32(v int32) keyBuf  { return b.u32(uint32(v)) }
func (b keyBuf) u64(v uint64) keyBuf { return binary.LittleEndian.AppendUint64(b, v) }
func (b keyBuf) f32(v float32) keyBuf {
	return b.u32(math.Float32bits(v))
}

func (b keyBuf) flag(v bool) keyBuf {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func (b keyBuf) sum() uint64 { return xxh3.Hash(b) }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

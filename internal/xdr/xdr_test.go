package xdr

import (
	"bytes"
	"testing"
)

func TestReaderBasic(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := NewReader(data)

	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
	if r.Pos() != 0 {
		t.Errorf("Pos() = %d, want 0", r.Pos())
	}

	b, err := r.ReadByte()
	if err != nil {
		t.Errorf("ReadByte() error = %v", err)
	}
	if b != 0x01 {
		t.Errorf("ReadByte() = %d, want 1", b)
	}
	if r.Pos() != 1 {
		t.Errorf("Pos() after ReadByte = %d, want 1", r.Pos())
	}
}

func TestReaderIntegers(t *testing.T) {
	data := []byte{
		0x78, 0x56, 0x34, 0x12, // uint32: 0x12345678
		0xEF, 0xCD, 0xAB, 0x89, 0x67, 0x45, 0x23, 0x01, // uint64: 0x0123456789ABCDEF
		0xFD, 0xFF, 0xFF, 0xFF, // int32: -3
		0xFC, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // int64: -4
	}
	r := NewReader(data)

	u32, err := r.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32() error = %v", err)
	}
	if u32 != 0x12345678 {
		t.Errorf("ReadUint32() = 0x%08X, want 0x12345678", u32)
	}

	u64, err := r.ReadUint64()
	if err != nil {
		t.Fatalf("ReadUint64() error = %v", err)
	}
	if u64 != 0x0123456789ABCDEF {
		t.Errorf("ReadUint64() = 0x%016X, want 0x0123456789ABCDEF", u64)
	}

	i32, _ := r.ReadInt32()
	if i32 != -3 {
		t.Errorf("ReadInt32() = %d, want -3", i32)
	}
	i64, _ := r.ReadInt64()
	if i64 != -4 {
		t.Errorf("ReadInt64() = %d, want -4", i64)
	}
}

func TestReaderStringN(t *testing.T) {
	data := []byte("ZISRAWFILE\x00\x00\x00\x00\x00\x00DV")
	r := NewReader(data)

	s, err := r.ReadStringN(16)
	if err != nil {
		t.Fatalf("ReadStringN() error = %v", err)
	}
	if s != "ZISRAWFILE" {
		t.Errorf("ReadStringN() = %q, want %q", s, "ZISRAWFILE")
	}
	if r.Pos() != 16 {
		t.Errorf("Pos() = %d, want 16", r.Pos())
	}

	s, _ = r.ReadStringN(2)
	if s != "DV" {
		t.Errorf("ReadStringN() = %q, want %q", s, "DV")
	}
}

func TestReaderErrors(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})

	if _, err := r.ReadUint32(); err != ErrShortBuffer {
		t.Errorf("ReadUint32() error = %v, want ErrShortBuffer", err)
	}
	if _, err := r.ReadUint64(); err != ErrShortBuffer {
		t.Errorf("ReadUint64() error = %v, want ErrShortBuffer", err)
	}
	if _, err := r.ReadBytes(-1); err != ErrNegativeSize {
		t.Errorf("ReadBytes(-1) error = %v, want ErrNegativeSize", err)
	}
	if _, err := r.ReadStringN(3); err != ErrShortBuffer {
		t.Errorf("ReadStringN(3) error = %v, want ErrShortBuffer", err)
	}
	if err := r.Skip(3); err != ErrShortBuffer {
		t.Errorf("Skip(3) error = %v, want ErrShortBuffer", err)
	}
	if err := r.SetPos(5); err != ErrShortBuffer {
		t.Errorf("SetPos(5) error = %v, want ErrShortBuffer", err)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos() after failed reads = %d, want 0", r.Pos())
	}
}

func TestBufferWriterRoundTrip(t *testing.T) {
	w := NewBufferWriter(64)
	w.WriteStringN("ZISRAWMETADATA", 16)
	w.WriteInt64(-7)
	w.WriteUint64(1 << 40)
	w.WriteInt32(-42)
	w.WriteFloat32(1.5)
	w.WriteZeros(3)
	w.WriteByte(0xAB)
	w.WriteBytes([]byte("xy"))

	if w.Len() != 16+8+8+4+4+3+1+2 {
		t.Fatalf("Len() = %d, want %d", w.Len(), 16+8+8+4+4+3+1+2)
	}

	r := NewReader(w.Bytes())
	id, _ := r.ReadStringN(16)
	if id != "ZISRAWMETADATA" {
		t.Errorf("id = %q, want ZISRAWMETADATA", id)
	}
	if v, _ := r.ReadInt64(); v != -7 {
		t.Errorf("ReadInt64() = %d, want -7", v)
	}
	if v, _ := r.ReadUint64(); v != 1<<40 {
		t.Errorf("ReadUint64() = %d, want %d", v, uint64(1<<40))
	}
	if v, _ := r.ReadInt32(); v != -42 {
		t.Errorf("ReadInt32() = %d, want -42", v)
	}
	if v, _ := r.ReadFloat32(); v != 1.5 {
		t.Errorf("ReadFloat32() = %f, want 1.5", v)
	}
	if err := r.Skip(3); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if b, _ := r.ReadByte(); b != 0xAB {
		t.Errorf("ReadByte() = 0x%02X, want 0xAB", b)
	}
	if b, _ := r.ReadBytes(2); !bytes.Equal(b, []byte("xy")) {
		t.Errorf("ReadBytes() = %q, want %q", b, "xy")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestBufferWriterStringNTruncates(t *testing.T) {
	w := NewBufferWriter(4)
	w.WriteStringN("ABCDEF", 4)
	if !bytes.Equal(w.Bytes(), []byte("ABCD")) {
		t.Errorf("WriteStringN() = %q, want %q", w.Bytes(), "ABCD")
	}
}

func TestBufferWriterPutInt64At(t *testing.T) {
	w := NewBufferWriter(16)
	w.WriteInt64(0)
	w.WriteInt64(0)

	if err := w.PutInt64At(8, 512); err != nil {
		t.Fatalf("PutInt64At() error = %v", err)
	}
	r := NewReader(w.Bytes())
	r.Skip(8)
	if v, _ := r.ReadInt64(); v != 512 {
		t.Errorf("patched value = %d, want 512", v)
	}
	if err := w.PutInt64At(10, 1); err != ErrShortBuffer {
		t.Errorf("PutInt64At(10) error = %v, want ErrShortBuffer", err)
	}
}

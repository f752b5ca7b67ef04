package decoder

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/imazen-go/imageflow/ferr"
)

// buildAPP2 returns one APP2 marker segment carrying an ICC_PROFILE chunk.
func buildAPP2(seq, count int, data []byte) []byte {
	payload := append([]byte(iccAPP2Signature), byte(seq), byte(count))
	payload = append(payload, data...)
	var seg bytes.Buffer
	seg.WriteByte(0xFF)
	seg.WriteByte(0xE2)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)+2))
	seg.Write(lenBuf[:])
	seg.Write(payload)
	return seg.Bytes()
}

func jpegStream(segments ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	for _, s := range segments {
		buf.Write(s)
	}
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

func TestExtractICCProfileReassemblesOutOfOrderChunks(t *testing.T) {
	data := jpegStream(
		buildAPP2(2, 2, []byte("world")),
		buildAPP2(1, 2, []byte("hello")),
	)
	profile, err := extractICCProfile(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(profile) != "helloworld" {
		t.Fatalf("expected reassembled profile %q, got %q", "helloworld", profile)
	}
}

func TestExtractICCProfileMissingMarkersFails(t *testing.T) {
	data := jpegStream(buildAPP2(1, 3, []byte("partial")))
	_, err := extractICCProfile(data)
	if !ferr.Is(err, ferr.ImageDecodingError) {
		t.Fatalf("expected ImageDecodingError for an incomplete sequence, got %v", err)
	}
}

func TestExtractICCProfileDuplicateSequenceFails(t *testing.T) {
	data := jpegStream(
		buildAPP2(1, 2, []byte("a")),
		buildAPP2(1, 2, []byte("b")),
	)
	_, err := extractICCProfile(data)
	if !ferr.Is(err, ferr.ImageDecodingError) {
		t.Fatalf("expected ImageDecodingError for a duplicate sequence number, got %v", err)
	}
}

func TestExtractICCProfileNonUniformCountFails(t *testing.T) {
	data := jpegStream(
		buildAPP2(1, 2, []byte("a")),
		buildAPP2(2, 3, []byte("b")),
	)
	_, err := extractICCProfile(data)
	if !ferr.Is(err, ferr.ImageDecodingError) {
		t.Fatalf("expected ImageDecodingError for non-uniform marker counts, got %v", err)
	}
}

func TestExtractICCProfileAbsentFails(t *testing.T) {
	data := jpegStream()
	_, err := extractICCProfile(data)
	if err == nil {
		t.Fatal("expected an error when no ICC_PROFILE markers are present")
	}
}

func TestExifOrientationIgnoresAPP2Segments(t *testing.T) {
	data := jpegStream(buildAPP2(1, 1, []byte("x")))
	if got := exifOrientation(data); got != 0 {
		t.Fatalf("expected orientation 0 with no APP1 Exif segment, got %d", got)
	}
}

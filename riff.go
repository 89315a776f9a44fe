package knockout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FourCC chunk identifiers used by the WebP container.
const (
	fccRIFF = "RIFF"
	fccWEBP = "WEBP"
	fccVP8X = "VP8X"
	fccANIM = "ANIM"
	fccANMF = "ANMF"
	fccALPH = "ALPH"
	fccVP8  = "VP8 "
	fccVP8L = "VP8L"
)

const (
	chunkHeaderSize = 8
	riffHeaderSize  = 12
)

var errMalformedRIFF = errors.New("malformed RIFF container")

type chunk struct {
	fourCC string
	data   []byte
}

// size is the number of bytes the chunk occupies on disk, padding included.
func (c chunk) size() int {
	return chunkHeaderSize + len(c.data) + len(c.data)&1
}

func (c chunk) WriteTo(w io.Writer) (int64, error) {
	return writeChunkTo(c.fourCC, c.data, w)
}

// Little-endian, as everything in RIFF.
func putUint24(b []byte, u uint32) {
	b[0] = uint8(u)
	b[1] = uint8(u >> 8)
	b[2] = uint8(u >> 16)
}

func readUint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func writeChunkTo(fourCC string, b []byte, w io.Writer) (int64, error) {
	header := [chunkHeaderSize]byte{}
	copy(header[:4], fourCC)
	binary.LittleEndian.PutUint32(header[4:], uint32(len(b)))

	hl, err := w.Write(header[:])
	if err != nil {
		return int64(hl), err
	}
	bl, err := w.Write(b)
	if err != nil {
		return int64(hl + bl), err
	}
	// Chunks are padded to an even length; the pad byte is not counted in
	// the size field.
	if len(b)&1 == 1 {
		pl, err := w.Write([]byte{0})
		return int64(hl + bl + pl), err
	}
	return int64(hl + bl), nil
}

// parseChunks splits a run of chunks. Trailing bytes too short to hold a
// chunk header are an error.
func parseChunks(b []byte) ([]chunk, error) {
	var chunks []chunk
	for len(b) > 0 {
		if len(b) < chunkHeaderSize {
			return nil, fmt.Errorf("%w: %d stray bytes", errMalformedRIFF, len(b))
		}
		fourCC := string(b[:4])
		n := int(binary.LittleEndian.Uint32(b[4:8]))
		b = b[chunkHeaderSize:]
		if n > len(b) {
			return nil, fmt.Errorf("%w: %q chunk claims %d bytes, %d left", errMalformedRIFF, fourCC, n, len(b))
		}
		chunks = append(chunks, chunk{fourCC: fourCC, data: b[:n]})
		b = b[n:]
		if n&1 == 1 && len(b) > 0 {
			b = b[1:]
		}
	}
	return chunks, nil
}

// parseWebP validates the RIFF/WEBP header of a whole file and returns its
// top-level chunks.
func parseWebP(b []byte) ([]chunk, error) {
	if len(b) < riffHeaderSize || string(b[:4]) != fccRIFF || string(b[8:12]) != fccWEBP {
		return nil, fmt.Errorf("%w: missing RIFF/WEBP header", errMalformedRIFF)
	}
	n := int(binary.LittleEndian.Uint32(b[4:8]))
	if n < 4 || n+chunkHeaderSize > len(b) {
		return nil, fmt.Errorf("%w: RIFF size %d for %d bytes", errMalformedRIFF, n, len(b))
	}
	return parseChunks(b[riffHeaderSize : chunkHeaderSize+n])
}

// writeWebP wraps chunks in a RIFF/WEBP header.
func writeWebP(w io.Writer, chunks ...chunk) (int64, error) {
	size := 4
	for _, c := range chunks {
		size += c.size()
	}
	header := [riffHeaderSize]byte{}
	copy(header[:4], fccRIFF)
	binary.LittleEndian.PutUint32(header[4:8], uint32(size))
	copy(header[8:], fccWEBP)

	total, err := w.Write(header[:])
	if err != nil {
		return int64(total), err
	}
	n := int64(total)
	for _, c := range chunks {
		cn, err := c.WriteTo(w)
		n += cn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

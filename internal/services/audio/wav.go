package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavChunks holds the parsed pieces of a RIFF/WAVE file needed for
// duration math and concatenation
type wavChunks struct {
	fmtChunk []byte // raw fmt chunk body
	data     []byte // raw data chunk body
	byteRate uint32
}

// parseWAV walks the RIFF chunk list and extracts the fmt and data
// chunks. Other chunks are skipped.
func parseWAV(data []byte) (*wavChunks, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	out := &wavChunks{}
	offset := 12
	for offset+8 <= len(data) {
		chunkID := data[offset : offset+4]
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			return nil, fmt.Errorf("truncated %s chunk", chunkID)
		}

		switch string(chunkID) {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			out.fmtChunk = data[body : body+chunkSize]
			out.byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			out.data = data[body : body+chunkSize]
		}

		// Chunks are word-aligned
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if out.fmtChunk == nil || out.data == nil {
		return nil, fmt.Errorf("missing fmt or data chunk")
	}
	return out, nil
}

// WAVDuration returns the playback duration in seconds of a WAV stream
func WAVDuration(data []byte) (float64, error) {
	parsed, err := parseWAV(data)
	if err != nil {
		return 0, err
	}
	if parsed.byteRate == 0 {
		return 0, fmt.Errorf("fmt chunk reports zero byte rate")
	}
	return float64(len(parsed.data)) / float64(parsed.byteRate), nil
}

// concatWAV joins WAV streams into a single file. All inputs must share
// the same fmt chunk; the first segment's format wins and mismatches are
// an error rather than silently resampled.
func concatWAV(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to concatenate")
	}

	first, err := parseWAV(segments[0])
	if err != nil {
		return nil, fmt.Errorf("segment 0: %w", err)
	}

	var pcm bytes.Buffer
	pcm.Write(first.data)

	for i, seg := range segments[1:] {
		parsed, err := parseWAV(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}
		if !bytes.Equal(parsed.fmtChunk, first.fmtChunk) {
			return nil, fmt.Errorf("segment %d: audio format differs from segment 0", i+1)
		}
		pcm.Write(parsed.data)
	}

	return buildWAV(first.fmtChunk, pcm.Bytes()), nil
}

// buildWAV assembles a canonical RIFF/WAVE file from a fmt chunk body and
// PCM data
func buildWAV(fmtChunk, pcm []byte) []byte {
	var out bytes.Buffer

	riffSize := 4 + (8 + len(fmtChunk)) + (8 + len(pcm))
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(riffSize))
	out.WriteString("WAVE")

	out.WriteString("fmt ")
	binary.Write(&out, binary.LittleEndian, uint32(len(fmtChunk)))
	out.Write(fmtChunk)

	out.WriteString("data")
	binary.Write(&out, binary.LittleEndian, uint32(len(pcm)))
	out.Write(pcm)

	return out.Bytes()
}

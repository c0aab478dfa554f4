package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Log record framing: 4-byte big-endian payload length, 4-byte CRC32C
// of the payload, then the JSON payload. A torn tail (short read or CRC
// mismatch on the final record) is truncated on replay; corruption
// before the tail is an error.
const recordHeaderSize = 8

// maxRecordSize bounds a single record so a corrupt length field cannot
// force a huge allocation.
const maxRecordSize = 16 * 1024 * 1024

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var errTornRecord = errors.New("journal: torn record")

func encodeRecord(job Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("journal: encode job %s: %w", job.ID, err)
	}

	buf := make([]byte, recordHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[4:], crc32.Checksum(payload, crc32cTable))
	copy(buf[recordHeaderSize:], payload)
	return buf, nil
}

func decodeRecord(r io.Reader) (Job, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Job{}, io.EOF
		}
		return Job{}, errTornRecord
	}

	length := binary.BigEndian.Uint32(header[:4])
	if length > maxRecordSize {
		return Job{}, fmt.Errorf("journal: record length %d exceeds limit", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Job{}, errTornRecord
	}

	if crc32.Checksum(payload, crc32cTable) != binary.BigEndian.Uint32(header[4:]) {
		return Job{}, errTornRecord
	}

	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, fmt.Errorf("journal: decode job: %w", err)
	}
	return job, nil
}

package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	chunkRecordPrefix  = "chkrec"
	sourceRecordPrefix = "srcrec"
)

// makeChunkKey generates a key for a chunk by source ID and index.
// Format: prefix:sourceID:index. The index is written in BigEndian order so
// lexicographic iteration yields chunks in source order.
func makeChunkKey(sourceID string, index int) []byte {
	prefix := makeChunkSourcePrefix(sourceID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makeChunkSourcePrefix generates the common key prefix of one source's
// chunks, for prefix iteration and bulk deletion.
func makeChunkSourcePrefix(sourceID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkRecordPrefix, sourceID))
}

// makeSourceKey generates a key for a source record by ID.
func makeSourceKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sourceRecordPrefix, id))
}

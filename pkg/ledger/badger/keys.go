package badger

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Key layout
//
// Data Type        Prefix  Key Format                Value
// ==========================================================
// Record           "r:"    r:<seq uint64 BE>         Record (JSON)
// Session index    "s:"    s:<uuid 16B><seq u64 BE>  empty
//
// Big-endian sequences make key order equal record order, so range scans
// return records oldest first and a reverse scan finds the newest.
const (
	prefixRecord  = "r:"
	prefixSession = "s:"
)

func keyRecord(seq uint64) []byte {
	key := make([]byte, len(prefixRecord)+8)
	copy(key, prefixRecord)
	binary.BigEndian.PutUint64(key[len(prefixRecord):], seq)
	return key
}

func seqFromRecordKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(prefixRecord):])
}

func keySessionPrefix(id uuid.UUID) []byte {
	key := make([]byte, len(prefixSession)+16, len(prefixSession)+24)
	copy(key, prefixSession)
	copy(key[len(prefixSession):], id[:])
	return key
}

func keySession(id uuid.UUID, seq uint64) []byte {
	key := keySessionPrefix(id)
	return binary.BigEndian.AppendUint64(key, seq)
}

func seqFromSessionKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

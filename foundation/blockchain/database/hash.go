package database

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Difficulty is the number of leading zero hex characters a block hash
// must carry to satisfy the proof of work.
const Difficulty = 4

// Digest produces the hex encoded sha256 of the block fields.
//
// The fields are concatenated in order with no delimiter, so (1, 23, ...) and
// (12, 3, ...) hash the same when the remaining fields match. This keeps the
// hashes byte compatible with nodes already on the network.
func Digest(index uint64, timestamp uint64, prevHash string, data string, nonce uint64) string {
	var b strings.Builder
	b.Grow(40 + len(prevHash) + len(data))

	b.WriteString(strconv.FormatUint(index, 10))
	b.WriteString(strconv.FormatUint(timestamp, 10))
	b.WriteString(prevHash)
	b.WriteString(data)
	b.WriteString(strconv.FormatUint(nonce, 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// MeetsDifficulty checks the hash to make sure it complies with the POW
// rules. We need to match a Difficulty number of 0's.
func MeetsDifficulty(hash string) bool {
	const match = "0000000000000000"

	if len(hash) < Difficulty {
		return false
	}

	return hash[:Difficulty] == match[:Difficulty]
}

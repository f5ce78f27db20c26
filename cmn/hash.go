package cmn

import (
	"strconv"

	"github.com/OneOfOne/xxhash"
)

// MLCG32 is the seed historically used across the pack's xxhash
// checksum call sites (node-id and identifier hashing alike); kept
// fixed so every node in a cluster derives the same dataset/job ids
// from the same inputs without exchanging a lookup table.
const MLCG32 = 1103515245

// DIdentifier is a dataset id: the fingerprint of a user-chosen
// dataset name, reduced modulo the configured keyspace size.
type DIdentifier uint64

// FIdentifier is a job id: the fingerprint of a (function name,
// query) pair for a given dataset, used for result-cache keying and
// duplicate-submit correlation.
type FIdentifier uint64

// FindDatasetID hashes name and reduces it modulo keyspaceSize, per
// the original find_identifier(name, mod) = hash(name) % mod.
func FindDatasetID(name string, keyspaceSize uint64) DIdentifier {
	h := xxhash.ChecksumString64S(name, MLCG32)
	if keyspaceSize == 0 {
		return DIdentifier(h)
	}
	return DIdentifier(h % keyspaceSize)
}

// FindJobID fingerprints (didentifier, functionName, query) into a
// job id stable for the lifetime of one submitted job.
func FindJobID(did DIdentifier, functionName, query string) FIdentifier {
	key := strconv.FormatUint(uint64(did), 10) + "\x00" + functionName + "\x00" + query
	return FIdentifier(xxhash.ChecksumString64S(key, MLCG32))
}

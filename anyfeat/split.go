package anyfeat

import (
	"bytes"
	"crypto/md5"
)

// HashSplit deterministically partitions utterance keys.
//
// A key lands on the left with probability leftRatio,
// decided only by the key's hash, so a key keeps its side
// as the cache grows.
// Both partitions keep the input order.
func HashSplit(keys []string, leftRatio float64) (left, right []string) {
	if leftRatio <= 0 {
		return nil, keys
	} else if leftRatio >= 1 {
		return keys, nil
	}
	cutoff := hashCutoff(leftRatio)
	for _, key := range keys {
		hash := md5.Sum([]byte(key))
		if bytes.Compare(hash[:len(cutoff)], cutoff) < 0 {
			left = append(left, key)
		} else {
			right = append(right, key)
		}
	}
	return
}

// hashCutoff expands ratio as base-256 digits.
func hashCutoff(ratio float64) []byte {
	res := make([]byte, 8)
	for i := range res {
		ratio *= 256
		value := min(int(ratio), 255)
		ratio -= float64(value)
		res[i] = byte(value)
	}
	return res
}

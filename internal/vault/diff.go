package vault

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	binarySampleSize   = 8192 // Bytes to sample for text/binary detection
	binaryThresholdPct = 10   // Max % non-printable chars for text content
)

// looksLikeText determines whether content is likely text.
//
// Detection heuristic (in order):
//  1. Null bytes present → binary
//  2. Invalid UTF-8 → binary
//  3. >10% non-printable control chars → binary
func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	sampleSize := binarySampleSize
	if len(data) < sampleSize {
		sampleSize = len(data)
	}
	sample := data[:sampleSize]

	if !utf8.Valid(sample) {
		return false
	}

	nonPrintable := 0
	for _, b := range sample {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}
	return nonPrintable*100 <= len(sample)*binaryThresholdPct
}

// sameContent compares two values by hash to avoid leaking length
// information through early-exit comparisons.
func sameContent(a, b []byte) bool {
	ha := sha256.Sum256(a)
	hb := sha256.Sum256(b)
	return ha == hb
}

// GenerateUnifiedDiff generates a unified diff between a stored entry
// value and local content using the go-diff library. Returns an empty
// string if the two are identical.
func GenerateUnifiedDiff(name string, vaultData, localData []byte) (string, error) {
	if sameContent(vaultData, localData) {
		return "", nil
	}

	if !looksLikeText(vaultData) || !looksLikeText(localData) {
		return fmt.Sprintf("Binary entry %s differs\n", name), nil
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff for better output
	vaultStr, localStr := string(vaultData), string(localData)
	a, b, lineArray := dmp.DiffLinesToChars(vaultStr, localStr)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(vaultStr, diffs)
	if len(patches) == 0 {
		return "", nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- vault/%s\n", name))
	result.WriteString(fmt.Sprintf("+++ local/%s\n", name))
	result.WriteString(dmp.PatchToText(patches))

	return result.String(), nil
}

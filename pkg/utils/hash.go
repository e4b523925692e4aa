package utils

import (
	"bytes"
	"crypto/sha256"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/fenilsonani/reclaim/internal/errs"
)

// ChunkSize is the read size used for hashing and comparing file content
const ChunkSize = 1024 * 1024 // 1MB

// Digest is a SHA256 content digest
type Digest [sha256.Size]byte

// HashFile computes the SHA256 digest of a file, reading it in ChunkSize
// pieces so peak memory does not depend on file size. Failures are returned
// as *errs.Error (PathGoneRace or PathUnreadable).
func HashFile(fs afero.Fs, path string) (Digest, error) {
	var digest Digest

	file, err := fs.Open(path)
	if err != nil {
		return digest, errs.Categorize(path, err)
	}
	defer file.Close()

	hash := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hashWriter{hash}, file, buf); err != nil {
		return digest, errs.Categorize(path, err)
	}

	copy(digest[:], hash.Sum(nil))
	return digest, nil
}

// QuickHash computes an xxhash of the first limit bytes of a file.
// This is a cheap pre-filter, equal quick hashes say nothing about the rest
// of the file.
func QuickHash(fs afero.Fs, path string, limit int64) (uint64, error) {
	file, err := fs.Open(path)
	if err != nil {
		return 0, errs.Categorize(path, err)
	}
	defer file.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, io.LimitReader(file, limit)); err != nil {
		return 0, errs.Categorize(path, err)
	}

	return hash.Sum64(), nil
}

// FilesEqual compares two files byte by byte
func FilesEqual(fs afero.Fs, a, b string) (bool, error) {
	fa, err := fs.Open(a)
	if err != nil {
		return false, errs.Categorize(a, err)
	}
	defer fa.Close()

	fb, err := fs.Open(b)
	if err != nil {
		return false, errs.Categorize(b, err)
	}
	defer fb.Close()

	bufA := make([]byte, ChunkSize)
	bufB := make([]byte, ChunkSize)

	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)

		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}

		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if errA != nil && !doneA {
			return false, errs.Categorize(a, errA)
		}
		if errB != nil && !doneB {
			return false, errs.Categorize(b, errB)
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}

// hashWriter hides ReadFrom so io.CopyBuffer uses the supplied buffer
type hashWriter struct {
	w io.Writer
}

func (h hashWriter) Write(p []byte) (int, error) {
	return h.w.Write(p)
}

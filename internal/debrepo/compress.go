package debrepo

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dsnet/compress/bzip2"
)

// encode applies the requested compression to a Packages body.
func encode(data []byte, comp Compression) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("debrepo: gzip failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("debrepo: gzip failed: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionBzip2:
		var buf bytes.Buffer
		w, err := bzip2.NewWriter(&buf, nil)
		if err != nil {
			return nil, fmt.Errorf("debrepo: bzip2 failed: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("debrepo: bzip2 failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("debrepo: bzip2 failed: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("debrepo: unknown compression %q", comp)
	}
}

// seal wraps data in a Blob stamped with fresh digests and the current time.
func seal(data []byte) *Blob {
	md5sum := md5.Sum(data)
	sha1sum := sha1.Sum(data)
	sha256sum := sha256.Sum256(data)
	return &Blob{
		Data:   data,
		MTime:  time.Now().UTC(),
		Size:   int64(len(data)),
		MD5Sum: hex.EncodeToString(md5sum[:]),
		SHA1:   hex.EncodeToString(sha1sum[:]),
		SHA256: hex.EncodeToString(sha256sum[:]),
	}
}

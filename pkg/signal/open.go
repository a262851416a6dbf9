package signal

import (
	"bufio"
	"compress/gzip"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// input is a decompressed view of a table file. The digest covers the raw
// bytes as stored on disk.
type input struct {
	io.Reader
	file   *os.File
	closer io.Closer
	hash   *blake3.Hasher
}

// openInput opens path ("-" is stdin), hashing raw bytes as they are read and
// decompressing .gz and .xz transparently.
func openInput(path string) (*input, error) {
	var fh *os.File
	if path == "-" {
		fh = os.Stdin
	} else {
		var err error
		fh, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open coverage-variant table: %w", err)
		}
	}

	in := &input{file: fh, hash: blake3.New()}
	raw := bufio.NewReaderSize(io.TeeReader(fh, in.hash), 1<<20)

	switch {
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(raw)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
		}
		in.Reader = gr
		in.closer = gr
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(raw)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("open xz stream %s: %w", path, err)
		}
		in.Reader = xr
	default:
		in.Reader = raw
	}
	return in, nil
}

// Digest is only complete once the reader has been drained.
func (in *input) Digest() string {
	return hex.EncodeToString(in.hash.Sum(nil))
}

func (in *input) Close() error {
	var errs []error
	if in.closer != nil {
		errs = append(errs, in.closer.Close())
	}
	if in.file != nil && in.file != os.Stdin {
		errs = append(errs, in.file.Close())
	}
	return errors.Join(errs...)
}

// SPDX-License-Identifier: MIT

package fs

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// ErrTooLarge is returned by WriteAtomic when the source exceeds maxBytes.
var ErrTooLarge = errors.New("content exceeds size limit")

// WriteAtomic streams r into path with fsync + rename. At most maxBytes are
// accepted; a larger source leaves no file behind.
func WriteAtomic(logger zerolog.Logger, path string, r io.Reader, maxBytes int64) (int64, error) {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// no-op after a successful CloseAtomicallyReplace
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("cleanup pending file")
		}
	}()

	n, err := io.Copy(pendingFile, io.LimitReader(r, maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("write data: %w", err)
	}
	if n > maxBytes {
		return 0, ErrTooLarge
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("atomically replace file: %w", err)
	}
	return n, nil
}

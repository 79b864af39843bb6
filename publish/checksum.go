package publish

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/teranos/snpm/errors"
)

// FileSHA1 returns the lowercase hex SHA-1 of the file at path
func FileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "failed to open artifact %s", path), errors.ErrIO)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "failed to read artifact %s", path), errors.ErrIO)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum compares the artifact's SHA-1 with expected, ignoring hex case
func VerifyChecksum(path, expected string) error {
	actual, err := FileSHA1(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return errors.Mark(
			errors.Newf("artifact %s has sha1 %s, expected %s", path, actual, expected),
			errors.ErrChecksumMismatch,
		)
	}
	return nil
}

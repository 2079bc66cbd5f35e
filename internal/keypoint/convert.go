package keypoint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Convert reads an annotation document and returns the reordered keypoints
// of every image in it. Any failure fails the whole call: there is no
// per-image isolation and no partial result.
func Convert(r io.Reader) (Annotations, error) {
	raws, err := decodeRaw(r)
	if err != nil {
		return nil, err
	}

	annotations := make(Annotations, len(raws))
	for _, ri := range raws {
		img, err := ri.parse()
		if err != nil {
			return nil, err
		}
		kps, err := ReorderToTarget(img.Points)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Name, err)
		}
		// a repeated image name keeps its last occurrence
		annotations[img.Name] = kps
	}
	return annotations, nil
}

// ConvertFile opens the document at path on the OS filesystem and
// converts it.
func ConvertFile(path string) (Annotations, error) {
	return ConvertFileFs(afero.NewOsFs(), path)
}

// ConvertFileFs opens the document at path on fsys and converts it. I/O
// errors keep their original cause, so errors.Is(err, fs.ErrNotExist) holds
// for a missing file.
func ConvertFileFs(fsys afero.Fs, path string) (Annotations, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer func() { _ = f.Close() }()

	annotations, err := Convert(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return annotations, nil
}

// Fingerprint identifies a document on the OS filesystem by its path, size
// and modification time.
func Fingerprint(path string) (string, error) {
	return FingerprintFs(afero.NewOsFs(), path)
}

// FingerprintFs is Fingerprint for a document on fsys. It changes whenever
// the file is rewritten.
func FingerprintFs(fsys afero.Fs, path string) (string, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}

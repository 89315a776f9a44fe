package knockout

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// OutputPath swaps the extension of src for ".webp".
func OutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".webp"
}

// writeFileAtomic streams into a hidden temporary file next to path and
// renames it into place only when write succeeds. On failure the temporary
// file is removed and path is left as it was.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				f.Close()
			}
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(f)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	closed = true
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

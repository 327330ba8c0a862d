package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/Faultbox/marc/pkg/formats"
)

// ErrVerifyFailed is returned when a freshly written archive does not read
// back as written.
var ErrVerifyFailed = errors.New("written archive failed verification")

// replaceFile writes a new archive with layout l next to target, syncs and
// verifies it, then renames it over target. fill writes everything after
// the container header. target is untouched unless every step succeeds.
func replaceFile(target string, l formats.Layout, fill func(w *formats.Writer) error) (err error) {
	st, err := os.Stat(target)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w, err := formats.NewWriter(tmp, l)
	if err != nil {
		return err
	}
	if err := fill(w); err != nil {
		return err
	}
	if err := w.Finish(); err != nil {
		return err
	}
	if err := unix.Fsync(int(tmp.Fd())); err != nil {
		return fmt.Errorf("fsync %s: %w", tmp.Name(), err)
	}

	if err := verify(tmp, l, w.Sum()); err != nil {
		return err
	}

	if err := tmp.Chmod(st.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	return syncDir(dir)
}

// verify re-reads f from disk and checks its size and record checksum.
func verify(f *os.File, l formats.Layout, sum uint64) error {
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() != l.Size() {
		return fmt.Errorf("%w: %d bytes on disk, expected %d", ErrVerifyFailed, st.Size(), l.Size())
	}
	got, err := formats.Checksum(f, l)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	if got != sum {
		return fmt.Errorf("%w: checksum %016x, expected %016x", ErrVerifyFailed, got, sum)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := unix.Fsync(int(d.Fd())); err != nil {
		return fmt.Errorf("fsync %s: %w", dir, err)
	}
	return nil
}

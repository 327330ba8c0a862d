package archive

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/Faultbox/marc/pkg/formats"
)

// snapshot is a read-only memory mapping of a backup copy.
type snapshot struct {
	*bytes.Reader
	data []byte
}

func openSnapshot(path string) (*snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < formats.HeaderSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", formats.ErrTruncatedMARCData, path, st.Size())
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("madvise: %w", err)
	}

	return &snapshot{Reader: bytes.NewReader(data), data: data}, nil
}

func (s *snapshot) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}

package builder

import (
	"debug/elf"
	"os"

	"github.com/inhies/go-bytesize"
	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
	"github.com/riscv-pio/riscv-upload/uploader"
)

// FirmwareTooLargeError is returned when the image does not fit in flash.
type FirmwareTooLargeError struct {
	Path    string
	Size    int64
	MaxSize int64
}

func (e *FirmwareTooLargeError) Error() string {
	return "firmware " + e.Path + " is too large: " + FormatSize(e.Size) + " > " + FormatSize(e.MaxSize)
}

// FormatSize formats a byte count for humans.
func FormatSize(n int64) string {
	return bytesize.New(float64(n)).String()
}

// CheckArtifact verifies that the artifact exists and looks like what the
// uploader will consume. It returns the image size: the loadable segments
// for ELF, the data records for HEX, the file size for BIN. A positive
// maxSize limits that size.
func CheckArtifact(kind uploader.Artifact, path string, maxSize int64) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "missing %s firmware, build the project first", kind)
	}
	if st.Size() == 0 {
		return 0, errors.Errorf("firmware %s is empty", path)
	}

	var size int64
	switch kind {
	case uploader.ELF:
		f, err := elf.Open(path)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid ELF file %s", path)
		}
		for _, prog := range f.Progs {
			if prog.Type == elf.PT_LOAD {
				size += int64(prog.Filesz)
			}
		}
		f.Close()
	case uploader.HEX:
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		mem := gohex.NewMemory()
		err = mem.ParseIntelHex(f)
		f.Close()
		if err != nil {
			return 0, errors.Wrapf(err, "invalid Intel HEX file %s", path)
		}
		segments := mem.GetDataSegments()
		if len(segments) == 0 {
			return 0, errors.Errorf("Intel HEX file %s contains no data", path)
		}
		for _, segment := range segments {
			size += int64(len(segment.Data))
		}
	default:
		size = st.Size()
	}

	if maxSize > 0 && size > maxSize {
		return size, &FirmwareTooLargeError{Path: path, Size: size, MaxSize: maxSize}
	}
	return size, nil
}

package nvs

import (
	"fmt"
	"os"
)

// FileFlash is a Flash backed by an image file, so content survives
// restarts.
type FileFlash struct {
	norFlash
	file *os.File
}

// OpenFileFlash opens an image file, creating an erased one of size if it
// doesn't exist. An existing image must have exactly size bytes.
func OpenFileFlash(path string, size int64, wordSize, pageSize int) (*FileFlash, error) {
	if err := validateGeometry(size, wordSize, pageSize); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	f := &FileFlash{
		norFlash: norFlash{
			data:     file,
			size:     size,
			wordSize: wordSize,
			pageSize: pageSize,
			erases:   make(map[int64]int),
		},
		file: file,
	}
	switch info.Size() {
	case size:
		return f, nil
	case 0:
		if err = f.Erase(0, size); err == nil {
			err = file.Sync()
		}
	default:
		err = fmt.Errorf("image %s has %d bytes, expect %d", path, info.Size(), size)
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	return f, nil
}

// Path returns the image file path.
func (f *FileFlash) Path() string {
	return f.file.Name()
}

// Close closes the image file.
func (f *FileFlash) Close() error {
	return f.file.Close()
}

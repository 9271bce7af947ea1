package main

import (
	"errors"
	"io/fs"
	"os"
)

func removeRecordingFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Check if path points at a file.
// If path points at a symlink and `followSymlink == false`,
// function will return `true` regardless of the symlink target
func IsFileExists(path string, followSymlink bool) (bool, error) {
	fileInfo, err := GetFileInfo(path, followSymlink)
	if err != nil {
		if os.IsNotExist(err) { // If doesn't exist, don't omit an error
			return false, nil
		}
		return false, err
	}
	return !fileInfo.IsDir(), nil
}

// Check if path points at a directory.
// If path points at a symlink and `followSymlink == false`,
// function will return `false` regardless of the symlink target
func IsDirExists(path string, followSymlink bool) (bool, error) {
	fileInfo, err := GetFileInfo(path, followSymlink)
	if err != nil {
		if os.IsNotExist(err) { // If doesn't exist, don't omit an error
			return false, nil
		}
		return false, err
	}
	return fileInfo.IsDir(), nil
}

// Get the file info of the file in path.
// If path points at a symlink and `followSymlink == false`, return the file info of the symlink instead
func GetFileInfo(path string, followSymlink bool) (fileInfo os.FileInfo, err error) {
	if followSymlink {
		fileInfo, err = os.Stat(path)
	} else {
		fileInfo, err = os.Lstat(path)
	}
	return fileInfo, err
}

func CreateDirIfNotExist(path string) error {
	exist, err := IsDirExists(path, true)
	if exist || err != nil {
		return err
	}
	return os.MkdirAll(path, 0755)
}

// MoveFile moves a file, falling back to copy and delete when os.Rename fails
// with "invalid cross-device link" (Docker volumes, tmpfs).
func MoveFile(sourcePath, destPath string) (err error) {
	if err = CreateDirIfNotExist(filepath.Dir(destPath)); err != nil {
		return
	}
	if os.Rename(sourcePath, destPath) == nil {
		return nil
	}
	inputFile, err := os.Open(sourcePath)
	if err != nil {
		return
	}
	inputFileOpen := true
	defer func() {
		if inputFileOpen {
			err = errors.Join(err, inputFile.Close())
		}
	}()
	inputFileInfo, err := inputFile.Stat()
	if err != nil {
		return
	}
	outputFile, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, inputFileInfo.Mode())
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, outputFile.Close())
	}()
	if _, err = io.Copy(outputFile, inputFile); err != nil {
		return
	}
	// The copy was successful, so now delete the original file
	if err = inputFile.Close(); err != nil {
		return
	}
	inputFileOpen = false
	return os.Remove(sourcePath)
}

// ListFilesRecursive returns the regular files under root, as paths relative to root with forward slashes.
func ListFilesRecursive(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

package utils

import (
	"bufio"
	"errors"

	//#nosec G501 -- md5 sidecars are still expected by Maven repositories.
	"crypto/md5"
	//#nosec G505 -- sha1 sidecars are still expected by Maven repositories.
	"crypto/sha1"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/minio/sha256-simd"
)

type Algorithm int

const (
	MD5 Algorithm = iota
	SHA1
	SHA256
	SHA512
)

// SidecarAlgorithms lists the checksums uploaded next to every published file, in upload order.
var SidecarAlgorithms = []Algorithm{MD5, SHA1, SHA256, SHA512}

var algorithmFunc = map[Algorithm]func() hash.Hash{
	// Go native crypto algorithms:
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA512: sha512.New,
	// sha256-simd algorithm:
	SHA256: sha256.New,
}

var algorithmExtension = map[Algorithm]string{
	MD5:    "md5",
	SHA1:   "sha1",
	SHA256: "sha256",
	SHA512: "sha512",
}

// Extension returns the file extension of the checksum sidecar, without the leading dot.
func (a Algorithm) Extension() string {
	return algorithmExtension[a]
}

func (a Algorithm) String() string {
	return a.Extension()
}

func GetFileChecksums(filePath string, checksumType ...Algorithm) (checksums map[Algorithm]string, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	return CalcChecksums(file, checksumType...)
}

// CalcChecksums calculates all hashes at once using AsyncMultiWriter. The reader is therefore read only once.
func CalcChecksums(reader io.Reader, checksumType ...Algorithm) (map[Algorithm]string, error) {
	hashes, err := calcChecksums(reader, checksumType...)
	if err != nil {
		return nil, err
	}
	results := map[Algorithm]string{}
	for k, v := range hashes {
		results[k] = fmt.Sprintf("%x", v.Sum(nil))
	}
	return results, nil
}

func calcChecksums(reader io.Reader, checksumType ...Algorithm) (map[Algorithm]hash.Hash, error) {
	hashes := getChecksumByAlgorithm(checksumType...)
	pageSize := os.Getpagesize()
	sizedReader := bufio.NewReaderSize(reader, pageSize)
	var hashWriter []io.Writer
	for _, v := range hashes {
		hashWriter = append(hashWriter, v)
	}
	_, err := io.Copy(AsyncMultiWriter(hashWriter...), sizedReader)
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func getChecksumByAlgorithm(checksumType ...Algorithm) map[Algorithm]hash.Hash {
	hashes := map[Algorithm]hash.Hash{}
	if len(checksumType) == 0 {
		for k, v := range algorithmFunc {
			hashes[k] = v()
		}
		return hashes
	}

	for _, v := range checksumType {
		hashes[v] = algorithmFunc[v]()
	}
	return hashes
}

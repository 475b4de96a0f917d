package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

const maxUploadBytes = 10 << 20 // 10MB

var allowedUploadExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// saveUpload persists a multipart file under dir and returns the stored
// relative path. The original filename is discarded; only its extension
// survives, lowercased and checked against the allow-list.
func saveUpload(file multipart.File, header *multipart.FileHeader, dir string) (string, error) {
	if header.Size > maxUploadBytes {
		return "", fmt.Errorf("file exceeds %dMB limit", maxUploadBytes>>20)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		return "", fmt.Errorf("file type %q not allowed", ext)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	name := hex.EncodeToString(b) + ext
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, maxUploadBytes+1)); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

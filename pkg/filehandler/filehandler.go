package filehandler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

/*
File explanation:
This file contains utility functions for file handling used by the CLI and the engine.
SniffContentType detects the content type of carrier bytes by magic number, falling back to net/http sniffing.
ExtensionFor maps a content type to the file extension used for stored artifacts.
ReadFileBytes reads a file with a size limit.
SaveFile writes data to a file, creating parent directories.
FilesInDirectory returns the files in a directory, optionally filtered by extension.
*/

// Content types for carrier formats net/http does not sniff
const (
	ContentTypeY4M  = "video/x-yuv4mpeg"
	ContentTypePcap = "application/vnd.tcpdump.pcap"
	ContentTypeTIFF = "image/tiff"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeBin  = "application/octet-stream"
)

var magics = []struct {
	prefix      []byte
	contentType string
}{
	{[]byte("\x89PNG\r\n\x1a\n"), "image/png"},
	{[]byte("\xff\xd8\xff"), "image/jpeg"},
	{[]byte("GIF8"), "image/gif"},
	{[]byte("BM"), "image/bmp"},
	{[]byte("II*\x00"), ContentTypeTIFF},
	{[]byte("MM\x00*"), ContentTypeTIFF},
	{[]byte("YUV4MPEG2 "), ContentTypeY4M},
	{[]byte("\xd4\xc3\xb2\xa1"), ContentTypePcap},
	{[]byte("\xa1\xb2\xc3\xd4"), ContentTypePcap},
	{[]byte("\x4d\x3c\xb2\xa1"), ContentTypePcap},
	{[]byte("\xa1\xb2\x3c\x4d"), ContentTypePcap},
}

// SniffContentType detects the content type of data
func SniffContentType(data []byte) string {
	for _, m := range magics {
		if bytes.HasPrefix(data, m.prefix) {
			return m.contentType
		}
	}
	if len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return "audio/wav"
	}

	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "text/plain") {
		return ContentTypeText
	}
	return ct
}

// ExtensionFor returns the artifact file extension for a content type
func ExtensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case ContentTypeTIFF:
		return ".tiff"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case ContentTypeY4M:
		return ".y4m"
	case ContentTypePcap:
		return ".pcap"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}

// ReadFileBytes reads a file and returns its content, refusing files over limit bytes
// (limit <= 0 disables the check)
func ReadFileBytes(filePath string, limit int64) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	size := info.Size()
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("file too large (%d bytes, max %d)", size, limit)
	}

	content := make([]byte, size)
	if _, err := io.ReadFull(file, content); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// SaveFile saves data to a file
func SaveFile(data []byte, filePath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}

// FilesInDirectory returns a list of files in a directory with the given extensions
func FilesInDirectory(dirPath string, extensions []string) ([]string, error) {
	var files []string

	// Check if directory exists
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	err = filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		if len(extensions) == 0 {
			files = append(files, path)
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, validExt := range extensions {
			if ext == validExt {
				files = append(files, path)
				break
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}

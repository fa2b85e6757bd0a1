package upload

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedModelExt = map[string]bool{
	".stl": true,
	".3mf": true,
	".obj": true,
}

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var allowedImageMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ValidateModelFile checks the filename extension and the first bytes of an
// uploaded 3D model file. Returns the normalized format ("stl", "3mf", "obj")
// or an error.
func ValidateModelFile(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedModelExt[ext] {
		return "", errors.New("only STL, 3MF and OBJ files are supported")
	}

	detected := http.DetectContentType(head)

	// Block scriptable content regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}

	switch ext {
	case ".3mf":
		// 3MF is a ZIP container; the magic is "PK"
		if len(head) < 2 || head[0] != 'P' || head[1] != 'K' {
			return "", errors.New("file does not look like a valid 3MF archive")
		}
		return "3mf", nil
	case ".stl":
		// ASCII STL starts with "solid"; binary STL has an arbitrary 80-byte
		// header, so anything that is not obviously text passes.
		if strings.HasPrefix(detected, "text/") && !bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("solid")) {
			return "", errors.New("file does not look like a valid STL")
		}
		return "stl", nil
	case ".obj":
		// OBJ is a plain-text format
		if !strings.HasPrefix(detected, "text/") && detected != "application/octet-stream" {
			return "", errors.New("file does not look like a valid OBJ")
		}
		return "obj", nil
	}

	return "", errors.New("unsupported file type")
}

// ValidateImageBySniff checks the provided filename (extension) and the first
// bytes (head) of a preview image against a whitelist. Returns the detected
// mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExt[ext] {
		return "", errors.New("only JPG, JPEG, PNG and WEBP preview images are supported")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		// Block SVG/XML until a sanitizer is available
		return "", errors.New("SVG/XML images are not supported")
	}

	if allowedImageMime[detected] {
		return detected, nil
	}

	return "", errors.New("unsupported preview image type")
}

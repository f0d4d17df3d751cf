// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// attachments.go - loading image files into message attachments.
package ui

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"queryquant/internal/model"
)

// maxAttachmentSize caps the size of a single attached image.
const maxAttachmentSize = 20 << 20 // 20 MB

// ErrNotAnImage indicates the file's content is not a supported image type.
var ErrNotAnImage = errors.New("not an image file")

// LoadAttachment reads an image file into an inline attachment. The
// MIME type comes from content sniffing, not the file extension.
func LoadAttachment(path string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("attach: %w", err)
	}
	if info.Size() > maxAttachmentSize {
		return model.Attachment{}, fmt.Errorf("attach %s: file exceeds %d MB", path, maxAttachmentSize>>20)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("attach: %w", err)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return model.Attachment{}, fmt.Errorf("attach %s: %w (detected %s)", path, ErrNotAnImage, mimeType)
	}

	name := filepath.Base(path)
	return model.NewImageAttachment(name, mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

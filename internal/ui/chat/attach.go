// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidechat/tidechat-tui/internal/model"
)

// MaxAttachmentSize caps image attachments at 8 MiB; larger payloads blow
// past most servers' request limits anyway.
const MaxAttachmentSize = 8 << 20

var imageMimes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// loadAttachment reads an image file into a data-URL attachment.
func loadAttachment(path string) (*model.Attachment, error) {
	mime, ok := imageMimes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("image exceeds %d MiB", MaxAttachmentSize>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &model.Attachment{
		Name:    filepath.Base(path),
		Mime:    mime,
		DataURL: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
	}, nil
}

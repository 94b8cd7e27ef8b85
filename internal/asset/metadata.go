// Copyright 2025 MediaStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package asset

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// Decoders registered for DecodeConfig. The catalog stores whatever
	// format the decoder reports.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"mediastore/internal/common"
)

// ImageMeta is what probing the source bytes yields.
type ImageMeta struct {
	Format   string
	MimeType string
	Width    int
	Height   int
}

var mimeByFormat = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

var formatByExt = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
	"bmp":  "bmp",
}

// probeImage reads dimensions and format without decoding pixel data.
// Unknown formats return common.ErrUnsupportedFormat; ingestion treats that
// as a warning and falls back to extension-derived metadata.
func probeImage(data []byte) (*ImageMeta, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnsupportedFormat, err)
	}
	return &ImageMeta{
		Format:   format,
		MimeType: mimeByFormat[format],
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// metaFromExtension is the fallback when probing fails. Dimensions stay zero.
func metaFromExtension(filename string) *ImageMeta {
	ext := strings.ToLower(common.Ext(filename))
	format, ok := formatByExt[ext]
	if !ok {
		format = ext
	}
	return &ImageMeta{
		Format:   format,
		MimeType: mimeByFormat[format],
	}
}

// Package qr はセッションIDをQRコード画像に変換する。
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DataURLPrefix はPNG画像のデータURLの接頭辞。
const DataURLPrefix = "data:image/png;base64,"

// DefaultSize はQRコード画像の既定の一辺のピクセル数。
const DefaultSize = 256

// Encoder は不透明なトークンをスキャン可能な画像ペイロードに変換する。
type Encoder interface {
	Encode(payload string) (string, error)
}

// PNGEncoder はgo-qrcodeでPNGを生成し、データURLとして返すEncoder。
type PNGEncoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewPNGEncoder はPNGEncoderを生成する。sizeが0以下の場合はDefaultSizeを使用する。
func NewPNGEncoder(size int) *PNGEncoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &PNGEncoder{size: size, level: qrcode.Medium}
}

// Encode はpayloadをQRコードPNGに変換し、base64のデータURLで返す。
func (e *PNGEncoder) Encode(payload string) (string, error) {
	if payload == "" {
		return "", errors.New("qr payload must not be empty")
	}

	png, err := qrcode.Encode(payload, e.level, e.size)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}

	return DataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// compile-time interface check
var _ Encoder = (*PNGEncoder)(nil)

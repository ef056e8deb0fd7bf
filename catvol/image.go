package catvol

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// DefaultJPEGQuality is the quality of images returned if requesting JPEG images
// and an explicit Quality amount is omitted.
const DefaultJPEGQuality = 80

// ImageGrayFromData returns a Gray image given data and image size.
func ImageGrayFromData(data []uint8, nx, ny int) (img *image.Gray) {
	img = &image.Gray{
		Pix:    data,
		Stride: nx,
		Rect:   image.Rect(0, 0, nx, ny),
	}
	return
}

// ImageContentType returns the MIME type for a format string like "png" or "jpg:80".
func ImageContentType(formatStr string) (string, error) {
	switch strings.Split(formatStr, ":")[0] {
	case "", "png":
		return "image/png", nil
	case "jpg", "jpeg":
		return "image/jpeg", nil
	default:
		return "", Invalid("file_extension", "illegal image format requested: %s", formatStr)
	}
}

// EncodeImage writes an image using a format and optional compression strength
// specified in a string, e.g., "png", "jpg:80".
func EncodeImage(w io.Writer, img image.Image, formatStr string) (err error) {
	format := strings.Split(formatStr, ":")
	var quality int = DefaultJPEGQuality
	if len(format) > 1 {
		quality, err = strconv.Atoi(format[1])
		if err != nil {
			return Invalid("file_extension", "bad jpeg quality %q", format[1])
		}
	}
	switch format[0] {
	case "", "png":
		return png.Encode(w, img)
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return Invalid("file_extension", "illegal image format requested: %s", format[0])
	}
}

// WriteImageHttp writes an image to a HTTP response writer using a format and optional
// compression strength specified in a string, e.g., "png", "jpg:80".
func WriteImageHttp(w http.ResponseWriter, img image.Image, formatStr string) error {
	contentType, err := ImageContentType(formatStr)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := EncodeImage(&buf, img, formatStr); err != nil {
		return err
	}
	w.Header().Set("Content-type", contentType)
	_, err = w.Write(buf.Bytes())
	return err
}

// ImageFromBase64 decodes a base64 encoded image.  A leading data URL header, as sent by
// canvas.toDataURL(), is stripped.
func ImageFromBase64(encoded string) (image.Image, string, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, "none", Invalid("image", "not base64: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "none", Invalid("image", "undecodable image: %v", err)
	}
	return img, format, nil
}

// RedChannel extracts the 8-bit red channel of an image.
func RedChannel(img image.Image) *Gray8 {
	b := img.Bounds()
	out := NewGray8(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.Data[(y-b.Min.Y)*out.Width+(x-b.Min.X)] = c.R
		}
	}
	return out
}

// Luminance converts an image to 8-bit intensity using the ITU-R 601-2 transform.
func Luminance(img image.Image) *Gray8 {
	b := img.Bounds()
	out := NewGray8(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out.Data[(y-b.Min.Y)*out.Width+(x-b.Min.X)] = g.Y
		}
	}
	return out
}

// MaskImage paints a mask with a color on a transparent background.
func MaskImage(m *Mask, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) != 0 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

// PNGBytes encodes an image as PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("unable to encode png: %v", err)
	}
	return buf.Bytes(), nil
}

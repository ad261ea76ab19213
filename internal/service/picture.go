package service

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const (
	defaultPictureSide    = 256
	defaultPictureQuality = 85
	pictureContentType    = "image/jpeg"
	pictureExt            = ".jpg"
)

// pictureProcessor turns an uploaded image into the square JPEG stored as a
// chat picture.
type pictureProcessor struct {
	side    int
	quality int
}

func newPictureProcessor(side, quality int) pictureProcessor {
	if side <= 0 {
		side = defaultPictureSide
	}
	if quality <= 0 || quality > 100 {
		quality = defaultPictureQuality
	}
	return pictureProcessor{side: side, quality: quality}
}

// process decodes r, crops it to a centred square and re-encodes it. The
// returned error means r was not a decodable image.
func (p pictureProcessor) process(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode picture: %w", err)
	}
	square := imaging.Fill(img, p.side, p.side, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode picture: %w", err)
	}
	return buf.Bytes(), nil
}

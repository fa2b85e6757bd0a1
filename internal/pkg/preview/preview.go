package preview

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

// Variant sizes in pixels (longest edge).
const (
	ThumbnailSize = 320
	CardSize      = 960
)

const webpQuality = 85

func init() {
	exif.RegisterParsers(mknote.All...)
}

// Variant is a single rendered preview image ready for upload.
type Variant struct {
	Name   string // "thumb" or "card"
	Data   []byte
	Width  int
	Height int
}

// Result holds the rendered variants for one preview image.
type Result struct {
	Thumbnail Variant
	Card      Variant
}

// Generate renders the webp preview variants for the uploaded image at
// srcPath. The source orientation is normalized from EXIF before resizing.
func Generate(srcPath string) (*Result, error) {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("error opening preview image: %w", err)
	}

	img = applyOrientation(img, readOrientation(srcPath))

	thumb, err := renderVariant(img, "thumb", ThumbnailSize)
	if err != nil {
		return nil, err
	}

	card, err := renderVariant(img, "card", CardSize)
	if err != nil {
		return nil, err
	}

	return &Result{Thumbnail: thumb, Card: card}, nil
}

func renderVariant(img image.Image, name string, size int) (Variant, error) {
	resized := img
	b := img.Bounds()
	if b.Dx() > size || b.Dy() > size {
		resized = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	data, err := encodeWebP(resized)
	if err != nil {
		return Variant{}, fmt.Errorf("error encoding %s variant: %w", name, err)
	}

	rb := resized.Bounds()
	return Variant{
		Name:   name,
		Data:   data,
		Width:  rb.Dx(),
		Height: rb.Dy(),
	}, nil
}

func encodeWebP(img image.Image) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return nil, fmt.Errorf("error creating encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("error encoding webp image: %w", err)
	}
	return buf.Bytes(), nil
}

// readOrientation returns the EXIF orientation tag for the file, or 1
// (normal) when the file has no usable EXIF data.
func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// JPEGs from most slicers and screenshots carry no EXIF block.
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// applyOrientation normalizes an image according to its EXIF orientation
// value so the rendered variants always display upright.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

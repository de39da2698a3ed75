package rimage

import (
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// WriteImageToFile encodes img as PNG at path. 16 bit gray images keep their depth.
func WriteImageToFile(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return imaging.Encode(f, img, imaging.PNG)
}

// ReadImageFromFile decodes the image at path.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(f)
	return img, multierr.Combine(err, f.Close())
}

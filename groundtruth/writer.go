package groundtruth

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/evimo/annotation"
	"go.viam.com/evimo/events"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/rimage"
	"go.viam.com/evimo/utils"
)

const (
	// FolderName is the output folder created inside the sequence folder.
	FolderName = "ground_truth"
	// MetaFile holds the aggregate record.
	MetaFile = "meta.json"
	// EventsFile holds the text export of the events.
	EventsFile = "events.txt"
)

func depthName(id int) string {
	return fmt.Sprintf("depth_%010d.png", id)
}

func maskName(id int) string {
	return fmt.Sprintf("mask_%010d.png", id)
}

func imageName(id int) string {
	return fmt.Sprintf("img_%010d.png", id)
}

// Writer writes into one ground truth folder.
type Writer struct {
	dir    string
	logger logging.Logger
}

// NewWriter removes any previous ground truth below folder and creates an empty one.
func NewWriter(folder string, logger logging.Logger) (*Writer, error) {
	dir := filepath.Join(folder, FolderName)
	logger.Infow("removing old ground truth", "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrapf(err, "cannot remove %q", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create %q", dir)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the ground truth folder.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteFrames writes the depth and mask PNGs of every generated frame, plus the camera image
// of frames taken at an image timestamp when images is non-nil.
func (w *Writer) WriteFrames(ctx context.Context, frames []*annotation.Frame, images []image.Image) error {
	if err := utils.ParallelEach(ctx, len(frames), func(i int) error {
		return w.writeFrame(frames[i], images)
	}); err != nil {
		return err
	}
	w.logger.Infow("wrote depth and mask ground truth", "frames", len(frames))
	return nil
}

func (w *Writer) writeFrame(f *annotation.Frame, images []image.Image) error {
	if f.Depth == nil || f.Mask == nil {
		return errors.Errorf("frame %d was not generated", f.ID)
	}
	err := multierr.Combine(
		rimage.WriteImageToFile(filepath.Join(w.dir, depthName(f.ID)), f.Depth.ToGray16()),
		rimage.WriteImageToFile(filepath.Join(w.dir, maskName(f.ID)), f.Mask.ToGray()),
	)
	if images != nil && f.HasImage() && f.ImageIndex < len(images) {
		err = multierr.Append(err, rimage.WriteImageToFile(filepath.Join(w.dir, imageName(f.ID)), images[f.ImageIndex]))
	}
	return err
}

// WriteMeta writes meta.json.
func (w *Writer) WriteMeta(rec *Record) error {
	return w.create(MetaFile, func(out *bufio.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	})
}

// WriteEvents writes events.txt.
func (w *Writer) WriteEvents(evs events.Array) error {
	w.logger.Infow("writing events", "count", len(evs))
	return w.create(EventsFile, func(out *bufio.Writer) error {
		return evs.WriteText(out)
	})
}

func (w *Writer) create(name string, write func(out *bufio.Writer) error) (err error) {
	path := filepath.Join(w.dir, name)
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	out := bufio.NewWriter(f)
	if err := write(out); err != nil {
		return errors.Wrapf(err, "cannot write %q", path)
	}
	return out.Flush()
}

// Write produces the complete ground truth folder for generated frames.
func Write(ctx context.Context, folder string, scene *annotation.Scene, frames []*annotation.Frame,
	evs events.Array, images []image.Image, logger logging.Logger,
) error {
	w, err := NewWriter(folder, logger)
	if err != nil {
		return err
	}
	if err := w.WriteFrames(ctx, frames, images); err != nil {
		return err
	}
	if err := w.WriteMeta(NewRecord(scene, frames)); err != nil {
		return err
	}
	return w.WriteEvents(evs)
}

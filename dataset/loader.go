package dataset

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/evimo/calibration"
	"go.viam.com/evimo/config"
	"go.viam.com/evimo/logging"
	"go.viam.com/evimo/pointcloud"
)

// Model file names looked up inside a model directory, in order.
var modelFiles = []string{"model.pcd", "model.ply"}

// Open reads the per folder configuration and calibration and loads the models of the enabled
// objects. Missing configuration or calibration is an error; a missing object model is logged
// and the object is left without a cloud.
func Open(opts config.Options, logger logging.Logger) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	enabled, err := config.ReadEnabledObjects(filepath.Join(opts.Folder, config.EnabledObjectsFile), logger)
	if err != nil {
		return nil, err
	}
	camera, err := calibration.ReadIntrinsicsFile(filepath.Join(opts.Folder, calibration.IntrinsicsFile), opts.ResX, opts.ResY)
	if err != nil {
		return nil, err
	}
	extrinsics, err := calibration.ReadExtrinsicsFile(filepath.Join(opts.Folder, calibration.ExtrinsicsFile), logger)
	if err != nil {
		return nil, err
	}
	logger.Infow("read calibration", "extrinsics", extrinsics.String())

	s := New(opts, camera, extrinsics, enabled, logger)
	modelsDir := opts.ModelsDir
	if !filepath.IsAbs(modelsDir) {
		modelsDir = filepath.Join(opts.Folder, modelsDir)
	}

	if !opts.NoBackground {
		bg, err := LoadModel(filepath.Join(modelsDir, opts.Background))
		if err != nil {
			return nil, errors.Wrap(err, "cannot load background")
		}
		if s.Background, err = pointcloud.ApplyPose(bg, extrinsics.Background()); err != nil {
			return nil, err
		}
	}

	for id := range enabled {
		name, ok := opts.Models[id]
		if !ok {
			logger.Warnw("no model configured for enabled object", "object", id)
			continue
		}
		cloud, err := LoadModel(filepath.Join(modelsDir, name))
		if err != nil {
			logger.Warnw("cannot load object model", "object", id, "model", name, "error", err)
			continue
		}
		s.Clouds[id] = cloud
	}
	return s, nil
}

// LoadModel reads the model.pcd or model.ply inside dir. Coordinates are meters.
func LoadModel(dir string) (pointcloud.PointCloud, error) {
	for _, name := range modelFiles {
		fn := filepath.Join(dir, name)
		if _, err := os.Stat(fn); err != nil {
			continue
		}
		if filepath.Ext(fn) == ".pcd" {
			return pointcloud.NewFromFile(fn)
		}
		//nolint:gosec
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer goutils.UncheckedErrorFunc(f.Close)
		cloud, err := pointcloud.ReadPLY(f)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %q", fn)
		}
		return cloud, nil
	}
	return nil, errors.Errorf("no model file in %q", dir)
}

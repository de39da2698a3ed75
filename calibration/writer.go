package calibration

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/evimo/spatialmath"
	"go.viam.com/evimo/utils"
)

// WriteExtrinsics writes the effective camera extrinsic, the background placement and the
// corrected time offsets in the layout ParseExtrinsics reads.
func WriteExtrinsics(w io.Writer, e *Extrinsics) error {
	cam := e.Camera()
	t, rpy := cam.Point(), cam.Orientation().EulerAngles()
	bg := e.background.Point()
	q := e.background.Orientation().Quaternion()
	_, err := fmt.Fprintf(w, "%.9g %.9g %.9g %.9g %.9g %.9g\n%.9g %.9g %.9g %.9g %.9g %.9g %.9g\n%.9g %.9g\n",
		t.X, t.Y, t.Z, rpy.Roll, rpy.Pitch, rpy.Yaw,
		bg.X, bg.Y, bg.Z, q.Real, q.Imag, q.Jmag, q.Kmag,
		e.PoseToEvent(), e.ImageToEvent())
	return err
}

// WriteExtrinsicsFile replaces the extrinsics file at path.
func WriteExtrinsicsFile(path string, e *Extrinsics) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create extrinsic calibration file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteExtrinsics(f, e)
}

// Table prints the base, delta and effective camera extrinsic, angles in degrees, followed by
// the corrected time offsets.
func (e *Extrinsics) Table() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"", "X", "Y", "Z", "Roll", "Pitch", "Yaw"})
	row := func(name string, tr [3]float64, rpy spatialmath.EulerAngles) table.Row {
		return table.Row{
			name,
			fmt.Sprintf("%.4f", tr[0]), fmt.Sprintf("%.4f", tr[1]), fmt.Sprintf("%.4f", tr[2]),
			fmt.Sprintf("%.3f", utils.RadToDeg(rpy.Roll)),
			fmt.Sprintf("%.3f", utils.RadToDeg(rpy.Pitch)),
			fmt.Sprintf("%.3f", utils.RadToDeg(rpy.Yaw)),
		}
	}
	cam := e.Camera()
	ct := cam.Point()
	t.AppendRows([]table.Row{
		row("base", [3]float64{e.translation.X, e.translation.Y, e.translation.Z}, e.rpy),
		row("delta", [3]float64{e.Delta(AxisX), e.Delta(AxisY), e.Delta(AxisZ)},
			spatialmath.EulerAngles{Roll: e.Delta(AxisRoll), Pitch: e.Delta(AxisPitch), Yaw: e.Delta(AxisYaw)}),
		row("camera", [3]float64{ct.X, ct.Y, ct.Z}, *cam.Orientation().EulerAngles()),
	})
	t.AppendFooter(table.Row{"time", "pose->event", fmt.Sprintf("%.4fs", e.PoseToEvent()),
		"image->event", fmt.Sprintf("%.4fs", e.ImageToEvent()), "", ""})
	return t.Render()
}

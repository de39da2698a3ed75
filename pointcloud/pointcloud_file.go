package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// NewFromFile reads a PCD file. Coordinates are meters.
func NewFromFile(fn string) (PointCloud, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	pc, err := ReadPCD(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %q", fn)
	}
	return pc, nil
}

// WriteToPCDFile writes the cloud to fn.
func WriteToPCDFile(cloud PointCloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

func colorToPCDInt(pt Data) int {
	if pt == nil || !pt.HasColor() {
		return 255 << 16
	}

	r, g, b := pt.RGB255()
	x := 0
	x |= int(r) << 16
	x |= int(g) << 8
	x |= int(b) << 0
	return x
}

func pcdIntToColor(c int) color.NRGBA {
	r := uint8(0xFF & (c >> 16))
	g := uint8(0xFF & (c >> 8))
	b := uint8(0xFF & (c >> 0))
	return color.NRGBA{r, g, b, 255}
}

// ToPCD writes the cloud in PCD v0.7, with an rgb field when the cloud has color.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	if outputType == PCDCompressed {
		return errors.New("compressed PCD not yet implemented")
	}
	fields := "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n"
	if cloud.MetaData().HasColor {
		fields = "FIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n"
	}
	data := "ascii"
	if outputType == PCDBinary {
		data = "binary"
	}

	if _, err := fmt.Fprintf(out, "VERSION .7\n%sWIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		fields, cloud.Size(), cloud.Size(), data); err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType) error {
	hasColor := cloud.MetaData().HasColor
	var err error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 12, 16)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pos.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pos.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pos.Z)))
			if hasColor {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(colorToPCDInt(d)))
			}
			_, err = out.Write(buf)
		default:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", pos.X, pos.Y, pos.Z, colorToPCDInt(d))
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", pos.X, pos.Y, pos.Z)
			}
		}
		return err == nil
	})
	return err
}

type pcdHeader struct {
	// fields is 3 for x y z and 4 when a packed rgb follows.
	fields int
	points int
	data   PCDType
}

// requiredPCDKeys must all appear, in this order, before the point data.
var requiredPCDKeys = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func atoiField(entries map[string][]string, key string) (int, error) {
	tokens := entries[key]
	if len(tokens) != 1 {
		return 0, errors.Errorf("%s expects one value, got %d", key, len(tokens))
	}
	v, err := strconv.Atoi(tokens[0])
	if err != nil || v < 0 {
		return 0, errors.Errorf("invalid %s value %q", key, tokens[0])
	}
	return v, nil
}

// parsePCDHeader checks the header entries of a point cloud we can read: float x y z with an
// optional packed rgb, unorganized or organized.
func parsePCDHeader(entries map[string][]string) (pcdHeader, error) {
	var header pcdHeader
	if v := strings.Join(entries["VERSION"], " "); v != ".7" && v != "0.7" {
		return header, errors.Errorf("unsupported pcd version %s", v)
	}
	switch fields := strings.Join(entries["FIELDS"], " "); fields {
	case "x y z":
		header.fields = 3
	case "x y z rgb", "x y z rgba":
		header.fields = 4
	default:
		return header, errors.Errorf("unsupported pcd fields %s", fields)
	}
	for _, key := range []string{"SIZE", "TYPE", "COUNT"} {
		if len(entries[key]) != header.fields {
			return header, errors.Errorf("unexpected number of fields in %s line", key)
		}
	}
	for _, size := range entries["SIZE"] {
		if size != "4" {
			return header, errors.Errorf("unsupported field size %s", size)
		}
	}
	if len(entries["VIEWPOINT"]) != 7 {
		return header, errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d",
			len(entries["VIEWPOINT"]))
	}

	width, err := atoiField(entries, "WIDTH")
	if err != nil {
		return header, err
	}
	height, err := atoiField(entries, "HEIGHT")
	if err != nil {
		return header, err
	}
	if header.points, err = atoiField(entries, "POINTS"); err != nil {
		return header, err
	}
	if header.points != width*height {
		return header, errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", header.points, width*height)
	}

	switch data := strings.Join(entries["DATA"], " "); data {
	case "ascii":
		header.data = PCDAscii
	case "binary":
		header.data = PCDBinary
	case "binary_compressed":
		header.data = PCDCompressed
	default:
		return header, errors.Errorf("unsupported pcd data type %s", data)
	}
	return header, nil
}

// ReadPCD reads an ascii or binary PCD stream.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	entries := make(map[string][]string, len(requiredPCDKeys))
	for next := 0; next < len(requiredPCDKeys); {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", next)
		}
		line, _, _ = strings.Cut(line, "#")
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] != requiredPCDKeys[next] {
			return nil, errors.Errorf("line is supposed to start with %s but is %s", requiredPCDKeys[next], strings.TrimSpace(line))
		}
		entries[tokens[0]] = tokens[1:]
		next++
	}
	header, err := parsePCDHeader(entries)
	if err != nil {
		return nil, err
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.New("compressed pcd not yet supported")
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(header.points)
	for i := 0; i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != header.fields {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		point := make([]float64, len(tokens))
		for j, token := range tokens {
			point[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d field %s", i, token)
			}
		}
		if err := pc.Set(sliceToPoint(point, header)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(header.points)
	record := make([]byte, 4*header.fields)
	point := make([]float64, header.fields)
	for i := 0; i < header.points; i++ {
		if _, err := io.ReadFull(in, record); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		for j := 0; j < 3; j++ {
			point[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(record[4*j:])))
		}
		if header.fields == 4 {
			point[3] = float64(binary.LittleEndian.Uint32(record[12:]))
		}
		if err := pc.Set(sliceToPoint(point, header)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func sliceToPoint(slice []float64, header pcdHeader) (r3.Vector, Data) {
	pos := r3.Vector{X: slice[0], Y: slice[1], Z: slice[2]}
	if header.fields == 4 {
		return pos, NewColoredData(pcdIntToColor(int(slice[3])))
	}
	return pos, NewBasicData()
}

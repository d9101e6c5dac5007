// Package waymo decodes recorded driving segments: TFRecord framing and the
// Frame protobuf, read field by field into capture.Capture values.
package waymo

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/capture"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/labels"
	"github.com/banshee-data/waymo-kitti/internal/rangeimage"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// ErrMalformedFrame is returned when a frame record cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Field numbers of the dataset protos.
const (
	frameContext         protowire.Number = 1
	frameTimestampMicros protowire.Number = 2
	framePose            protowire.Number = 3
	frameImages          protowire.Number = 4
	frameLasers          protowire.Number = 5
	frameLaserLabels     protowire.Number = 6
	frameCameraLabels    protowire.Number = 8
	frameProjectedLabels protowire.Number = 9

	contextName         protowire.Number = 1
	contextCameraCalibs protowire.Number = 2
	contextLaserCalibs  protowire.Number = 3
	contextStats        protowire.Number = 4
	statsLocation       protowire.Number = 3

	transformValues protowire.Number = 1

	cameraCalibName      protowire.Number = 1
	cameraCalibIntrinsic protowire.Number = 2
	cameraCalibExtrinsic protowire.Number = 3
	cameraCalibWidth     protowire.Number = 4
	cameraCalibHeight    protowire.Number = 5

	laserCalibName         protowire.Number = 1
	laserCalibInclinations protowire.Number = 2
	laserCalibInclMin      protowire.Number = 3
	laserCalibInclMax      protowire.Number = 4
	laserCalibExtrinsic    protowire.Number = 5

	laserName    protowire.Number = 1
	laserReturn1 protowire.Number = 2
	laserReturn2 protowire.Number = 3

	rangeImageCompressed     protowire.Number = 2
	rangeImagePoseCompressed protowire.Number = 4

	imageName          protowire.Number = 1
	imageData          protowire.Number = 2
	imagePose          protowire.Number = 3
	imageVelocity      protowire.Number = 4
	imagePoseTimestamp protowire.Number = 5
	imageShutter       protowire.Number = 6
	imageTriggerTime   protowire.Number = 7
	imageReadoutDone   protowire.Number = 8

	velocityVX protowire.Number = 1
	velocityVY protowire.Number = 2
	velocityVZ protowire.Number = 3
	velocityWX protowire.Number = 4
	velocityWY protowire.Number = 5
	velocityWZ protowire.Number = 6

	cameraLabelsName   protowire.Number = 1
	cameraLabelsLabels protowire.Number = 2

	labelBox        protowire.Number = 1
	labelType       protowire.Number = 3
	labelID         protowire.Number = 4
	labelDifficulty protowire.Number = 5

	boxCenterX protowire.Number = 1
	boxCenterY protowire.Number = 2
	boxCenterZ protowire.Number = 3
	boxWidth   protowire.Number = 4
	boxLength  protowire.Number = 5
	boxHeight  protowire.Number = 6
	boxHeading protowire.Number = 7
)

// DecodeOptions limits how much of a frame is decoded.
type DecodeOptions struct {
	// Returns is the number of laser returns to decompress; 0 means all.
	Returns int
	// SkipImages drops encoded camera images; exposure metadata is kept.
	SkipImages bool
}

// Summary is the part of a frame needed to decide whether to convert it.
type Summary struct {
	ContextName     string
	TimestampMicros int64
	Location        string
}

// DecodeSummary reads the identity and location of a frame without touching
// range images, images or labels.
func DecodeSummary(data []byte) (Summary, error) {
	var s Summary
	err := eachField(data, func(f field) error {
		var err error
		switch f.num {
		case frameContext:
			var b []byte
			if b, err = f.bytes(); err == nil {
				err = eachField(b, func(f field) error {
					switch f.num {
					case contextName:
						s.ContextName, err = f.str()
						return err
					case contextStats:
						sb, err := f.bytes()
						if err != nil {
							return err
						}
						return eachField(sb, func(f field) error {
							if f.num == statsLocation {
								var err error
								s.Location, err = f.str()
								return err
							}
							return nil
						})
					}
					return nil
				})
			}
		case frameTimestampMicros:
			var v uint64
			v, err = f.varint()
			s.TimestampMicros = int64(v)
		}
		return err
	})
	return s, err
}

// DecodeFrame decodes one serialized frame into a capture.
func DecodeFrame(data []byte, opts DecodeOptions) (*capture.Capture, error) {
	c := &capture.Capture{
		Pose:        geom.Identity(),
		RangeImages: map[sensor.LaserName][]rangeimage.RangeImage{},
	}
	var (
		lasers   []calib.LaserCalibration
		cameras  []calib.CameraCalibration
		havePose bool
	)

	err := eachField(data, func(f field) error {
		switch f.num {
		case frameContext:
			b, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeContext(b, c, &lasers, &cameras)
		case frameTimestampMicros:
			v, err := f.varint()
			c.TimestampMicros = int64(v)
			return err
		case framePose:
			t, err := decodeTransformField(f)
			c.Pose, havePose = t, true
			return err
		case frameImages:
			b, err := f.bytes()
			if err != nil {
				return err
			}
			img, err := decodeImage(b, opts)
			if err != nil {
				return err
			}
			c.Images = append(c.Images, img)
		case frameLasers:
			b, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeLaser(b, c, opts)
		case frameLaserLabels:
			b, err := f.bytes()
			if err != nil {
				return err
			}
			l, err := decodeObjectLabel(b)
			if err != nil {
				return err
			}
			c.LaserLabels = append(c.LaserLabels, l)
		case frameCameraLabels, frameProjectedLabels:
			b, err := f.bytes()
			if err != nil {
				return err
			}
			g, err := decodeCameraGroup(b)
			if err != nil {
				return err
			}
			if f.num == frameCameraLabels {
				c.CameraLabels = append(c.CameraLabels, g)
			} else {
				c.ProjectedLabels = append(c.ProjectedLabels, g)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !havePose {
		return nil, fmt.Errorf("%w: frame has no pose", ErrMalformedFrame)
	}

	set, err := calib.NewSet(lasers, cameras)
	if err != nil {
		return nil, err
	}
	c.Calibration = set
	return c, nil
}

func decodeContext(b []byte, c *capture.Capture, lasers *[]calib.LaserCalibration, cameras *[]calib.CameraCalibration) error {
	return eachField(b, func(f field) error {
		switch f.num {
		case contextName:
			var err error
			c.ContextName, err = f.str()
			return err
		case contextCameraCalibs:
			mb, err := f.bytes()
			if err != nil {
				return err
			}
			cam, err := decodeCameraCalibration(mb)
			if err != nil {
				return err
			}
			*cameras = append(*cameras, cam)
		case contextLaserCalibs:
			mb, err := f.bytes()
			if err != nil {
				return err
			}
			l, err := decodeLaserCalibration(mb)
			if err != nil {
				return err
			}
			*lasers = append(*lasers, l)
		case contextStats:
			sb, err := f.bytes()
			if err != nil {
				return err
			}
			return eachField(sb, func(f field) error {
				if f.num == statsLocation {
					var err error
					c.Location, err = f.str()
					return err
				}
				return nil
			})
		}
		return nil
	})
}

// decodeTransformField reads a Transform message: 16 row-major doubles.
func decodeTransformField(f field) (geom.Transform, error) {
	b, err := f.bytes()
	if err != nil {
		return geom.Transform{}, err
	}
	var vals []float64
	err = eachField(b, func(f field) error {
		if f.num != transformValues {
			return nil
		}
		var err error
		vals, err = f.doubles(vals)
		return err
	})
	if err != nil {
		return geom.Transform{}, err
	}
	t, err := geom.NewTransform(vals)
	if err != nil {
		return geom.Transform{}, fmt.Errorf("%w: transform: %v", ErrMalformedFrame, err)
	}
	return t, nil
}

func decodeCameraCalibration(b []byte) (calib.CameraCalibration, error) {
	var (
		cam       calib.CameraCalibration
		intrinsic []float64
		haveExt   bool
	)
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case cameraCalibName:
			var v int
			v, err = f.enum()
			cam.Name = sensor.CameraName(v)
		case cameraCalibIntrinsic:
			intrinsic, err = f.doubles(intrinsic)
		case cameraCalibExtrinsic:
			cam.Extrinsic, err = decodeTransformField(f)
			haveExt = true
		case cameraCalibWidth:
			var v int
			v, err = f.enum()
			cam.Width = v
		case cameraCalibHeight:
			var v int
			v, err = f.enum()
			cam.Height = v
		}
		return err
	})
	if err != nil {
		return cam, err
	}
	if !haveExt {
		return cam, fmt.Errorf("%w: camera %v has no extrinsic", ErrMalformedFrame, cam.Name)
	}
	if cam.Intrinsic, err = calib.IntrinsicsFromSlice(intrinsic); err != nil {
		return cam, fmt.Errorf("camera %v: %w", cam.Name, err)
	}
	return cam, nil
}

func decodeLaserCalibration(b []byte) (calib.LaserCalibration, error) {
	var (
		l       calib.LaserCalibration
		haveExt bool
	)
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case laserCalibName:
			var v int
			v, err = f.enum()
			l.Name = sensor.LaserName(v)
		case laserCalibInclinations:
			l.BeamInclinations, err = f.doubles(l.BeamInclinations)
		case laserCalibInclMin:
			l.BeamInclinationMin, err = f.double()
		case laserCalibInclMax:
			l.BeamInclinationMax, err = f.double()
		case laserCalibExtrinsic:
			l.Extrinsic, err = decodeTransformField(f)
			haveExt = true
		}
		return err
	})
	if err == nil && !haveExt {
		err = fmt.Errorf("%w: laser %v has no extrinsic", ErrMalformedFrame, l.Name)
	}
	return l, err
}

func decodeLaser(b []byte, c *capture.Capture, opts DecodeOptions) error {
	var (
		name    sensor.LaserName
		returns [2][]byte
	)
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case laserName:
			var v int
			v, err = f.enum()
			name = sensor.LaserName(v)
		case laserReturn1:
			returns[0], err = f.bytes()
		case laserReturn2:
			returns[1], err = f.bytes()
		}
		return err
	})
	if err != nil {
		return err
	}

	n := len(returns)
	if opts.Returns > 0 && opts.Returns < n {
		n = opts.Returns
	}
	for i := 0; i < n; i++ {
		if returns[i] == nil {
			break
		}
		ri, pose, err := decodeRangeImage(returns[i], name == sensor.PrimaryLaser && i == 0)
		if err != nil {
			return fmt.Errorf("laser %v return %d: %w", name, i+1, err)
		}
		if ri == nil {
			break
		}
		c.RangeImages[name] = append(c.RangeImages[name], *ri)
		if pose != nil {
			c.TopPose = pose
		}
	}
	return nil
}

// decodeRangeImage returns a nil image when the return carries no data.
func decodeRangeImage(b []byte, wantPose bool) (*rangeimage.RangeImage, *rangeimage.PixelPoseGrid, error) {
	var rangeBlob, poseBlob []byte
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case rangeImageCompressed:
			rangeBlob, err = f.bytes()
		case rangeImagePoseCompressed:
			poseBlob, err = f.bytes()
		}
		return err
	})
	if err != nil || len(rangeBlob) == 0 {
		return nil, nil, err
	}

	m, err := rangeimage.Decompress(rangeBlob)
	if err != nil {
		return nil, nil, err
	}
	ri, err := rangeimage.NewRangeImage(m)
	if err != nil {
		return nil, nil, err
	}
	if !wantPose || len(poseBlob) == 0 {
		return &ri, nil, nil
	}
	pm, err := rangeimage.Decompress(poseBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("pixel pose: %w", err)
	}
	grid, err := rangeimage.NewPixelPoseGrid(pm)
	if err != nil {
		return nil, nil, fmt.Errorf("pixel pose: %w", err)
	}
	return &ri, grid, nil
}

func decodeImage(b []byte, opts DecodeOptions) (capture.CameraImage, error) {
	img := capture.CameraImage{Pose: geom.Identity()}
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case imageName:
			var v int
			v, err = f.enum()
			img.Camera = sensor.CameraName(v)
		case imageData:
			if !opts.SkipImages {
				img.Data, err = f.bytes()
			}
		case imagePose:
			img.Pose, err = decodeTransformField(f)
		case imageVelocity:
			var vb []byte
			if vb, err = f.bytes(); err == nil {
				img.Velocity, err = decodeVelocity(vb)
			}
		case imagePoseTimestamp:
			img.PoseTimestamp, err = f.double()
		case imageShutter:
			img.ShutterTime, err = f.double()
		case imageTriggerTime:
			img.TriggerTime, err = f.double()
		case imageReadoutDone:
			img.ReadoutDoneTime, err = f.double()
		}
		return err
	})
	return img, err
}

func decodeVelocity(b []byte) (capture.Velocity, error) {
	var v capture.Velocity
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case velocityVX:
			v.VX, err = f.float()
		case velocityVY:
			v.VY, err = f.float()
		case velocityVZ:
			v.VZ, err = f.float()
		case velocityWX:
			v.WX, err = f.double()
		case velocityWY:
			v.WY, err = f.double()
		case velocityWZ:
			v.WZ, err = f.double()
		}
		return err
	})
	return v, err
}

// rawLabel holds the fields shared by 3D and 2D label messages.
type rawLabel struct {
	id         string
	typ        int
	difficulty int
	center     r3.Vec
	length     float64
	width      float64
	height     float64
	heading    float64
}

func decodeLabel(b []byte) (rawLabel, error) {
	var l rawLabel
	err := eachField(b, func(f field) error {
		var err error
		switch f.num {
		case labelBox:
			var bb []byte
			if bb, err = f.bytes(); err == nil {
				err = decodeBox(bb, &l)
			}
		case labelType:
			l.typ, err = f.enum()
		case labelID:
			l.id, err = f.str()
		case labelDifficulty:
			l.difficulty, err = f.enum()
		}
		return err
	})
	return l, err
}

func decodeBox(b []byte, l *rawLabel) error {
	return eachField(b, func(f field) error {
		var err error
		switch f.num {
		case boxCenterX:
			l.center.X, err = f.double()
		case boxCenterY:
			l.center.Y, err = f.double()
		case boxCenterZ:
			l.center.Z, err = f.double()
		case boxWidth:
			l.width, err = f.double()
		case boxLength:
			l.length, err = f.double()
		case boxHeight:
			l.height, err = f.double()
		case boxHeading:
			l.heading, err = f.double()
		}
		return err
	})
}

func decodeObjectLabel(b []byte) (labels.ObjectLabel, error) {
	l, err := decodeLabel(b)
	if err != nil {
		return labels.ObjectLabel{}, err
	}
	return labels.ObjectLabel{
		ID:   l.id,
		Type: labels.ObjectType(l.typ),
		Box: geom.Box3D{
			Center:  l.center,
			Length:  l.length,
			Width:   l.width,
			Height:  l.height,
			Heading: l.heading,
		},
		Difficulty: l.difficulty,
	}, nil
}

func decodeCameraGroup(b []byte) (labels.CameraGroup, error) {
	var g labels.CameraGroup
	err := eachField(b, func(f field) error {
		switch f.num {
		case cameraLabelsName:
			v, err := f.enum()
			g.Camera = sensor.CameraName(v)
			return err
		case cameraLabelsLabels:
			lb, err := f.bytes()
			if err != nil {
				return err
			}
			l, err := decodeLabel(lb)
			if err != nil {
				return err
			}
			g.Boxes = append(g.Boxes, labels.CameraBox{
				ID:   l.id,
				Type: labels.ObjectType(l.typ),
				Box:  labels.Box2DFromCenter(l.center.X, l.center.Y, l.length, l.width),
			})
		}
		return nil
	})
	return g, err
}

package testutil

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/waymo-kitti/internal/rangeimage"
	"github.com/banshee-data/waymo-kitti/internal/waymo"
)

// FrameSpec describes one synthetic frame.
type FrameSpec struct {
	ContextName     string
	TimestampMicros int64
	Location        string
	// Pose is the vehicle pose; nil encodes the identity.
	Pose            []float64
	Cameras         []CameraSpec
	Lasers          []LaserSpec
	Images          []ImageSpec
	LaserLabels     []LabelSpec
	ProjectedLabels []LabelGroupSpec
	CameraLabels    []LabelGroupSpec
}

// CameraSpec is a camera calibration.
type CameraSpec struct {
	Name          int
	Intrinsic     []float64
	Extrinsic     []float64
	Width, Height int
}

// LaserSpec is a laser calibration plus its range images.
type LaserSpec struct {
	Name           int
	Extrinsic      []float64
	Inclinations   []float64
	InclinationMin float64
	InclinationMax float64
	// Returns are [H, W, C] range images, first return first.
	Returns []rangeimage.Matrix
	// PixelPose is an [H, W, 6] grid attached to the first return.
	PixelPose *rangeimage.Matrix
}

// ImageSpec is one camera image with its exposure metadata.
type ImageSpec struct {
	Name          int
	Data          []byte
	Pose          []float64
	Velocity      [6]float64
	PoseTimestamp float64
	Shutter       float64
	Trigger       float64
	Readout       float64
}

// LabelSpec is a 3D label, or a 2D label when only the x/y centre and
// length/width are meaningful.
type LabelSpec struct {
	ID                        string
	Type                      int
	CenterX, CenterY, CenterZ float64
	Length, Width, Height     float64
	Heading                   float64
	Difficulty                int
}

// LabelGroupSpec is the label set of one camera.
type LabelGroupSpec struct {
	Camera int
	Labels []LabelSpec
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	return appendMessage(b, num, packed)
}

func transform(vals []float64) []byte {
	if vals == nil {
		vals = Identity16()
	}
	return appendPackedDoubles(nil, 1, vals)
}

func mustCompress(m rangeimage.Matrix) []byte {
	blob, err := rangeimage.Compress(m)
	if err != nil {
		panic(err)
	}
	return blob
}

func (l LabelSpec) marshal() []byte {
	var box []byte
	box = appendDouble(box, 1, l.CenterX)
	box = appendDouble(box, 2, l.CenterY)
	box = appendDouble(box, 3, l.CenterZ)
	box = appendDouble(box, 4, l.Width)
	box = appendDouble(box, 5, l.Length)
	box = appendDouble(box, 6, l.Height)
	box = appendDouble(box, 7, l.Heading)

	var b []byte
	b = appendMessage(b, 1, box)
	b = appendVarint(b, 3, uint64(l.Type))
	b = appendString(b, 4, l.ID)
	b = appendVarint(b, 5, uint64(l.Difficulty))
	return b
}

func (g LabelGroupSpec) marshal() []byte {
	b := appendVarint(nil, 1, uint64(g.Camera))
	for _, l := range g.Labels {
		b = appendMessage(b, 2, l.marshal())
	}
	return b
}

// Marshal encodes the frame in the dataset's wire format.
func (s FrameSpec) Marshal() []byte {
	var ctx []byte
	ctx = appendString(ctx, 1, s.ContextName)
	for _, c := range s.Cameras {
		var cb []byte
		cb = appendVarint(cb, 1, uint64(c.Name))
		cb = appendPackedDoubles(cb, 2, c.Intrinsic)
		cb = appendMessage(cb, 3, transform(c.Extrinsic))
		cb = appendVarint(cb, 4, uint64(c.Width))
		cb = appendVarint(cb, 5, uint64(c.Height))
		ctx = appendMessage(ctx, 2, cb)
	}
	for _, l := range s.Lasers {
		var lb []byte
		lb = appendVarint(lb, 1, uint64(l.Name))
		if len(l.Inclinations) > 0 {
			lb = appendPackedDoubles(lb, 2, l.Inclinations)
		}
		lb = appendDouble(lb, 3, l.InclinationMin)
		lb = appendDouble(lb, 4, l.InclinationMax)
		lb = appendMessage(lb, 5, transform(l.Extrinsic))
		ctx = appendMessage(ctx, 3, lb)
	}
	ctx = appendMessage(ctx, 4, appendString(nil, 3, s.Location))

	var b []byte
	b = appendMessage(b, 1, ctx)
	b = appendVarint(b, 2, uint64(s.TimestampMicros))
	b = appendMessage(b, 3, transform(s.Pose))
	for _, img := range s.Images {
		var ib []byte
		ib = appendVarint(ib, 1, uint64(img.Name))
		ib = appendMessage(ib, 2, img.Data)
		ib = appendMessage(ib, 3, transform(img.Pose))
		var vb []byte
		for i, v := range img.Velocity {
			if i < 3 {
				vb = appendFloat(vb, protowire.Number(i+1), float32(v))
			} else {
				vb = appendDouble(vb, protowire.Number(i+1), v)
			}
		}
		ib = appendMessage(ib, 4, vb)
		ib = appendDouble(ib, 5, img.PoseTimestamp)
		ib = appendDouble(ib, 6, img.Shutter)
		ib = appendDouble(ib, 7, img.Trigger)
		ib = appendDouble(ib, 8, img.Readout)
		b = appendMessage(b, 4, ib)
	}
	for _, l := range s.Lasers {
		lb := appendVarint(nil, 1, uint64(l.Name))
		for i, m := range l.Returns {
			rb := appendMessage(nil, 2, mustCompress(m))
			if i == 0 && l.PixelPose != nil {
				rb = appendMessage(rb, 4, mustCompress(*l.PixelPose))
			}
			lb = appendMessage(lb, protowire.Number(2+i), rb)
		}
		b = appendMessage(b, 5, lb)
	}
	for _, l := range s.LaserLabels {
		b = appendMessage(b, 6, l.marshal())
	}
	for _, g := range s.CameraLabels {
		b = appendMessage(b, 8, g.marshal())
	}
	for _, g := range s.ProjectedLabels {
		b = appendMessage(b, 9, g.marshal())
	}
	return b
}

// Segment frames each FrameSpec as one TFRecord and concatenates them.
func Segment(frames ...FrameSpec) []byte {
	var out []byte
	for _, f := range frames {
		out = waymo.AppendRecord(out, f.Marshal())
	}
	return out
}

// JPEG is a minimal payload carrying the JPEG magic bytes.
var JPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

// SimpleFrame returns a small, fully populated frame:
//
//   - five cameras with identity extrinsics
//   - a 1×1 TOP range image whose only return lands at (10, 0, 0)
//   - a 1×2 FRONT range image with one valid pixel at (0, -5, 0)
//   - "car" (VEHICLE) enclosing the TOP point, projected into FRONT
//   - "ped" (PEDESTRIAN) enclosing nothing, projected into SIDE_LEFT
//   - "ghost" (SIGN) with no projection
//   - one 2D-only SIGN label in the FRONT camera
func SimpleFrame(contextName string, ts int64) FrameSpec {
	f := FrameSpec{
		ContextName:     contextName,
		TimestampMicros: ts,
		Location:        "location_sf",
		Pose:            Identity16(),
	}
	for name := 1; name <= 5; name++ {
		f.Cameras = append(f.Cameras, CameraSpec{
			Name:      name,
			Intrinsic: []float64{2000, 2000, 960, 640, 0, 0, 0, 0, 0},
			Extrinsic: Identity16(),
			Width:     1920,
			Height:    1280,
		})
		f.Images = append(f.Images, ImageSpec{
			Name:          name,
			Data:          JPEG,
			Pose:          Identity16(),
			Velocity:      [6]float64{1, 0, 0, 0, 0, 0.5},
			PoseTimestamp: float64(ts) / 1e6,
			Shutter:       0.003,
			Trigger:       float64(ts)/1e6 - 0.01,
			Readout:       float64(ts)/1e6 + 0.02,
		})
	}

	pose := rangeimage.Matrix{Dims: []int{1, 1, 6}, Data: make([]float32, 6)}
	f.Lasers = []LaserSpec{
		{
			Name:         1,
			Extrinsic:    Identity16(),
			Inclinations: []float64{0},
			Returns: []rangeimage.Matrix{
				{Dims: []int{1, 1, 4}, Data: []float32{10, 0.8, 0.1, 0}},
				{Dims: []int{1, 1, 4}, Data: []float32{12, 0.2, 0.3, 0}},
			},
			PixelPose: &pose,
		},
		{
			Name:         2,
			Extrinsic:    Identity16(),
			Inclinations: []float64{0},
			Returns: []rangeimage.Matrix{
				{Dims: []int{1, 2, 4}, Data: []float32{-1, 0, 0, 0, 5, 0.5, 0.2, 0}},
			},
		},
	}

	f.LaserLabels = []LabelSpec{
		{ID: "car", Type: 1, CenterX: 10, CenterZ: 0.5, Length: 4, Width: 2, Height: 2, Difficulty: 1},
		{ID: "ped", Type: 2, CenterX: -20, CenterY: 5, CenterZ: 0.9, Length: 1, Width: 1, Height: 1.8, Difficulty: 2},
		{ID: "ghost", Type: 3, CenterX: 40, Length: 1, Width: 1, Height: 1},
	}
	f.ProjectedLabels = []LabelGroupSpec{
		{Camera: 1, Labels: []LabelSpec{{ID: "car_FRONT", Type: 1, CenterX: 960, CenterY: 640, Length: 100, Width: 50}}},
		{Camera: 4, Labels: []LabelSpec{{ID: "ped_SIDE_LEFT", Type: 2, CenterX: 100, CenterY: 200, Length: 20, Width: 60}}},
	}
	f.CameraLabels = []LabelGroupSpec{
		{Camera: 1, Labels: []LabelSpec{{ID: "sign-2d", Type: 3, CenterX: 300, CenterY: 100, Length: 40, Width: 40}}},
	}
	return f
}

package capture

import "fmt"

// Stage names the conversion step a capture failed in.
type Stage string

const (
	StageDecode      Stage = "decode"
	StageCalibration Stage = "calibration"
	StageProjection  Stage = "projection"
	StageLabels      Stage = "labels"
	StageWrite       Stage = "write"
)

// CaptureError reports a failure that aborts one capture. It wraps the
// component error, so errors.Is matches the component's sentinels.
type CaptureError struct {
	ContextName     string
	TimestampMicros int64
	Stage           Stage
	Err             error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s@%d: %s: %v", e.ContextName, e.TimestampMicros, e.Stage, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Fail wraps err as a CaptureError for c. It returns nil when err is nil.
func Fail(c *Capture, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	ce := &CaptureError{Stage: stage, Err: err}
	if c != nil {
		ce.ContextName = c.ContextName
		ce.TimestampMicros = c.TimestampMicros
	}
	return ce
}

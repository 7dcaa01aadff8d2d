package motion

import (
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/rodcrop/internal/config"
	"github.com/ironsheep/rodcrop/internal/imaging"
	"github.com/ironsheep/rodcrop/internal/opticalflow"
)

// Result is the outcome of one Track call.
type Result struct {
	// Detected is true when enough columns showed vertical motion.
	Detected bool

	// Confirmed is true when enough rows inside the column span moved as
	// well, so fresh bounds were computed and stored.
	Confirmed bool

	// Cropped is true when Frame is a sub-rectangle of the input. The
	// sub-rectangle is empty when Bounds has zero height (a single active
	// row) or lies outside the native frame.
	Cropped bool

	// Bounds is the rectangle cut out of the input when Cropped, in native
	// frame coordinates.
	Bounds Bounds

	// Frame is the output image: the input itself, or a crop of it.
	Frame image.Image

	// Err is set when processing failed. Detected is then false and Frame is
	// the unmodified input.
	Err error
}

// state is the per-stream memory of a Tracker.
type state struct {
	previous image.Image
	last     Bounds
	moving   bool
}

// Tracker detects the moving rod in consecutive frames of one stream and
// crops frames around it.
type Tracker struct {
	cfg       config.OpticalFlow
	estimator opticalflow.Estimator
	log       logrus.FieldLogger
	id        uuid.UUID
	st        state
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithEstimator replaces the default optical flow estimator.
func WithEstimator(e opticalflow.Estimator) Option {
	return func(t *Tracker) {
		t.estimator = e
	}
}

// WithLogger sets the logger that receives processing failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Tracker) {
		t.log = l
	}
}

// NewTracker returns a Tracker with empty state.
//
// Returns an error if cfg does not pass validation or the default estimator
// cannot be built.
func NewTracker(cfg config.OpticalFlow, opts ...Option) (*Tracker, error) {
	if err := (&config.Config{OpticalFlow: cfg}).Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		cfg: cfg,
		log: logrus.StandardLogger(),
		id:  uuid.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.estimator == nil {
		e, err := opticalflow.New()
		if err != nil {
			return nil, errors.Wrap(err, "create optical flow estimator")
		}
		t.estimator = e
	}
	t.log = t.log.WithField("stream", t.id.String())
	return t, nil
}

// ID returns the stream identifier attached to the tracker's log entries.
func (t *Tracker) ID() uuid.UUID {
	return t.id
}

// Moving reports whether at least one detection has been confirmed since
// construction or the last Reset.
func (t *Tracker) Moving() bool {
	return t.st.moving
}

// LastBounds returns the bounds of the last confirmed detection in native
// frame coordinates. ok is false until the tracker is moving.
//
// With ScaleToNative the bounds were scaled from working resolution when they
// were computed; otherwise working coordinates are used as native ones.
func (t *Tracker) LastBounds() (b Bounds, ok bool) {
	return t.st.last, t.st.moving
}

// Reset clears all stream state. The next frame is treated as the first
// frame of a new stream.
func (t *Tracker) Reset() {
	t.st = state{}
}

// DetectAndCrop processes frame and reports whether a rod was detected along
// with the output frame. Processing failures are logged and reported as a
// non-detection with the unmodified frame.
func (t *Tracker) DetectAndCrop(frame image.Image) (bool, image.Image) {
	r := t.Track(frame)
	return r.Detected, r.Frame
}

// Track processes frame and returns the full outcome.
//
// The first frame of a stream only becomes the reference for the next call.
// On failure the stored previous frame is kept, so the next call compares
// against the last frame that was processed successfully.
//
// # Errors
//
// Track never panics and never returns a partial state update. Result.Err is
// set, and the failure logged, when:
//   - frame is nil or has no pixels
//   - the native size differs from the previous frame
//   - preprocessing or flow estimation fails, or panics
func (t *Tracker) Track(frame image.Image) Result {
	if frame == nil || frame.Bounds().Empty() {
		return t.fail(frame, errors.New("empty frame"))
	}

	if t.st.previous == nil {
		t.st.previous = imaging.Clone(frame)
		return Result{Frame: frame}
	}

	res, err := t.process(frame)
	if err != nil {
		return t.fail(frame, err)
	}

	t.st.previous = imaging.Clone(frame)
	return res
}

func (t *Tracker) fail(frame image.Image, err error) Result {
	t.log.WithError(err).Error("optical flow processing failed")
	return Result{Frame: frame, Err: err}
}

// process runs detection against the stored previous frame. It only mutates
// the stored bounds and moving flag, and only after every fallible step
// succeeded.
func (t *Tracker) process(frame image.Image) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("recovered from panic: %v", r)
		}
	}()

	prev := t.st.previous
	ps, fs := prev.Bounds().Size(), frame.Bounds().Size()
	if ps != fs {
		return Result{}, errors.Errorf("frame size changed from %dx%d to %dx%d", ps.X, ps.Y, fs.X, fs.Y)
	}

	mask, err := t.motionMask(prev, frame)
	if err != nil {
		return Result{}, err
	}

	w, h := t.cfg.ResizeWidth, t.cfg.ResizeHeight
	res = Result{Frame: frame}

	cols := ColumnActivity(mask, w, h, t.cfg.XMinMin, t.cfg.XMaxMax)
	activeCols := ActiveIndices(cols, float64(h)*columnActivityRatio, t.cfg.XMinMin)
	if len(activeCols) < t.cfg.MinActiveColumns {
		return res, nil
	}
	res.Detected = true

	xMin, xMax, ok := Span(activeCols, t.cfg.StripPadding, t.cfg.XMinMin, t.cfg.XMaxMax)
	if !ok {
		return res, nil
	}
	rows := RowActivity(mask, w, h, xMin, xMax)
	activeRows := ActiveIndices(rows, float64(xMax-xMin)*rowActivityRatio, 0)
	if len(activeRows) < t.cfg.MinActiveRows {
		return res, nil
	}
	res.Confirmed = true

	fresh := Bounds{
		YMin: max(activeRows[0], 0),
		YMax: min(activeRows[len(activeRows)-1], h),
		XMin: xMin,
		XMax: xMax,
	}
	atTop := fresh.YMin == 0
	fresh = t.toNative(frame, fresh)

	if t.st.moving {
		applied := fresh
		if atTop {
			applied = t.st.last
		}
		res.Frame = imaging.CropRect(frame, applied.Rect())
		res.Bounds = applied
		res.Cropped = true
	}

	t.st.last = fresh
	t.st.moving = true
	return res, nil
}

// motionMask preprocesses both frames at working resolution, estimates the
// optical flow between them and thresholds its vertical component.
func (t *Tracker) motionMask(prev, cur image.Image) ([]bool, error) {
	w, h := t.cfg.ResizeWidth, t.cfg.ResizeHeight

	prevSmall, err := imaging.Resize(prev, w, h)
	if err != nil {
		return nil, errors.Wrap(err, "resize previous frame")
	}
	curSmall, err := imaging.Resize(cur, w, h)
	if err != nil {
		return nil, errors.Wrap(err, "resize current frame")
	}

	prevGray := imaging.Luminance(prevSmall)
	curGray := imaging.Luminance(curSmall)

	glow, err := imaging.GlowMask(prevGray, curGray, t.cfg.GlowingPixels)
	if err != nil {
		return nil, errors.Wrap(err, "build glow mask")
	}

	prevEq := imaging.Equalize(prevGray)
	curEq := imaging.Equalize(curGray)
	if err := imaging.ApplyMask(prevEq, glow); err != nil {
		return nil, errors.Wrap(err, "mask previous frame")
	}
	if err := imaging.ApplyMask(curEq, glow); err != nil {
		return nil, errors.Wrap(err, "mask current frame")
	}

	field, err := t.estimator.Estimate(prevEq, curEq)
	if err != nil {
		return nil, errors.Wrap(err, "estimate optical flow")
	}
	if field.Width != w || field.Height != h {
		return nil, errors.Errorf("flow field is %dx%d, want %dx%d", field.Width, field.Height, w, h)
	}
	return field.VerticalMask(t.cfg.VerticalMotionThreshold), nil
}

// toNative maps working-resolution bounds onto frame when ScaleToNative is
// set. Otherwise b is returned unchanged.
func (t *Tracker) toNative(frame image.Image, b Bounds) Bounds {
	if !t.cfg.ScaleToNative {
		return b
	}
	size := frame.Bounds().Size()
	return b.Scale(
		float64(size.X)/float64(t.cfg.ResizeWidth),
		float64(size.Y)/float64(t.cfg.ResizeHeight),
	)
}

// String summarizes the result for logs.
func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("error: %v", r.Err)
	case r.Cropped:
		return fmt.Sprintf("cropped y=[%d,%d) x=[%d,%d)", r.Bounds.YMin, r.Bounds.YMax, r.Bounds.XMin, r.Bounds.XMax)
	case r.Confirmed:
		return "confirmed"
	case r.Detected:
		return "detected"
	default:
		return "no motion"
	}
}

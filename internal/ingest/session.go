package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weighstation/internal/logging"
	"weighstation/internal/measurements"
	"weighstation/internal/scale"
	"weighstation/internal/serialport"
	"weighstation/internal/snapshot"
)

const (
	readChunk      = 256
	persistTimeout = 5 * time.Second
)

// Source yields raw bytes from the scale. Read blocks until data is ready.
type Source interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// availabler is implemented by sources that can report queued bytes.
type availabler interface {
	Available() (int, error)
}

// Sink persists accepted measurements.
type Sink interface {
	Insert(ctx context.Context, m measurements.Measurement) (int64, error)
}

// Options tune a Session.
type Options struct {
	Offset   int
	Sentinel int
	Machine  string
	Logger   *slog.Logger
}

// Stats is a point-in-time view of a session.
type Stats struct {
	Running         bool      `json:"running"`
	LastWeight      int       `json:"last_weight"`
	LastID          int64     `json:"last_id,omitempty"`
	LastAcceptedAt  time.Time `json:"last_accepted_at,omitempty"`
	Frames          int64     `json:"frames"`
	FramesDropped   int64     `json:"frames_dropped"`
	DecodeErrors    int64     `json:"decode_errors"`
	Accepted        int64     `json:"accepted"`
	CaptureFailures int64     `json:"capture_failures"`
	PersistFailures int64     `json:"persist_failures"`
}

// Session is the single ingestion worker. Only Run touches the frame buffer
// and the filter; Stats may be called from any goroutine.
type Session struct {
	source   Source
	capturer snapshot.Capturer
	sink     Sink
	filter   *scale.Filter
	frames   scale.FrameBuffer
	machine  string
	logger   *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewSession wires a session. A nil capturer disables snapshots.
func NewSession(source Source, capturer snapshot.Capturer, sink Sink, opts Options) *Session {
	if capturer == nil {
		capturer = snapshot.Disabled{}
	}
	filter := scale.NewFilter(opts.Offset, opts.Sentinel)
	return &Session{
		source:   source,
		capturer: capturer,
		sink:     sink,
		filter:   filter,
		machine:  opts.Machine,
		logger:   logging.NewComponentLogger(opts.Logger, "ingest"),
		stats:    Stats{LastWeight: filter.Last()},
	}
}

// Stats returns a copy of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run reads until ctx is cancelled or the source fails. Cancellation and a
// closed source end the session cleanly; buffered partial records are
// discarded.
func (s *Session) Run(ctx context.Context) error {
	logger := logging.WithContext(ctx, s.logger)
	s.setRunning(true)
	defer s.setRunning(false)
	defer func() {
		if pending := s.frames.Pending(); pending > 0 {
			logger.Debug("discarding partial record", logging.Int("bytes", pending))
		}
		s.frames.Reset()
	}()

	logger.Info("ingestion started",
		logging.Int("offset", s.filter.Offset()),
		logging.Int("last_weight", s.filter.Last()),
		logging.String(logging.FieldEventType, "ingest_started"),
	)

	buf := make([]byte, readChunk)
	for {
		if avail, ok := s.source.(availabler); ok {
			if n, err := avail.Available(); err == nil && n > len(buf) {
				buf = make([]byte, n)
			}
		}
		n, err := s.source.Read(ctx, buf)
		if n > 0 {
			s.frames.Append(buf[:n])
			s.drain(ctx, logger)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, serialport.ErrClosed) {
				logger.Info("ingestion stopped", logging.String(logging.FieldEventType, "ingest_stopped"))
				return nil
			}
			return fmt.Errorf("read scale: %w", err)
		}
	}
}

func (s *Session) drain(ctx context.Context, logger *slog.Logger) {
	for {
		frame, ok := s.frames.Next()
		if !ok {
			return
		}
		s.handleFrame(ctx, logger, frame)
	}
}

func (s *Session) handleFrame(ctx context.Context, logger *slog.Logger, frame []byte) {
	s.update(func(st *Stats) { st.Frames++ })

	if len(frame) != scale.RecordLength {
		FramesDroppedTotal.Inc()
		s.update(func(st *Stats) { st.FramesDropped++ })
		logger.Debug("frame dropped", logging.Int("length", len(frame)))
		return
	}

	reading, err := scale.Decode(frame)
	if err != nil {
		DecodeErrorsTotal.Inc()
		s.update(func(st *Stats) { st.DecodeErrors++ })
		logging.WarnWithContext(logger, "record not decoded; skipping", "decode_failed",
			logging.Error(err),
			logging.String("record", fmt.Sprintf("%q", frame)),
			logging.String(logging.FieldErrorHint, "check scale output format"),
			logging.String(logging.FieldImpact, "reading ignored"),
		)
		return
	}

	weight, accepted := s.filter.Evaluate(reading)
	if !accepted {
		return
	}
	AcceptedTotal.Inc()
	LastAcceptedWeight.Set(float64(weight))
	logger.Info("weight accepted", logging.Weight(weight), logging.String(logging.FieldEventType, "weight_accepted"))

	image := s.capture(ctx, logger, weight)
	s.persist(ctx, logger, weight, image)
}

func (s *Session) capture(ctx context.Context, logger *slog.Logger, weight int) string {
	start := time.Now()
	image, err := s.capturer.Capture(ctx)
	if errors.Is(err, snapshot.ErrDisabled) {
		return ""
	}
	elapsed := time.Since(start)
	CaptureDurationSeconds.Observe(elapsed.Seconds())
	if err != nil {
		CaptureFailuresTotal.Inc()
		s.update(func(st *Stats) { st.CaptureFailures++ })
		logging.WarnWithContext(logger, "snapshot failed; storing without image", "snapshot_failed",
			logging.Weight(weight),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check camera.rtsp_url and camera reachability"),
			logging.String(logging.FieldImpact, "measurement stored without image"),
		)
		return ""
	}
	logger.Debug("snapshot captured", logging.String(logging.FieldSnapshot, image), logging.Duration("elapsed", elapsed))
	return image
}

func (s *Session) persist(ctx context.Context, logger *slog.Logger, weight int, image string) {
	// An accepted reading is written even while shutting down.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	now := time.Now()
	id, err := s.sink.Insert(writeCtx, measurements.Measurement{
		Weight:    weight,
		Timestamp: measurements.FormatTimestamp(now),
		Image:     image,
		Machine:   s.machine,
	})
	if err != nil {
		PersistFailuresTotal.Inc()
		s.update(func(st *Stats) {
			st.Accepted++
			st.PersistFailures++
			st.LastWeight = weight
			st.LastAcceptedAt = now
		})
		logging.ErrorWithContext(logger, "measurement not stored", "persist_failed",
			logging.Weight(weight),
			logging.Error(err),
			logging.Alert("measurement_lost"),
			logging.String(logging.FieldErrorHint, "check storage settings and disk space"),
		)
		return
	}

	s.update(func(st *Stats) {
		st.Accepted++
		st.LastWeight = weight
		st.LastID = id
		st.LastAcceptedAt = now
	})
	attrs := []logging.Attr{
		logging.Int64(logging.FieldMeasurementID, id),
		logging.Weight(weight),
		logging.String(logging.FieldEventType, "measurement_stored"),
	}
	if image != "" {
		attrs = append(attrs, logging.String(logging.FieldSnapshot, image))
	}
	logger.Info("measurement stored", logging.Args(attrs...)...)
}

func (s *Session) update(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

func (s *Session) setRunning(running bool) {
	s.update(func(st *Stats) { st.Running = running })
}

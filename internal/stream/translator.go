package stream

import (
	"context"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/pipeline"
)

// Status messages sent when a stage starts.
const (
	StatusSearching    = "Searching the web..."
	StatusSynthesizing = "Synthesizing report..."
	StatusWorking      = "Working..."
)

// saveTimeout bounds the persistence call made after a successful run.
const saveTimeout = 10 * time.Second

var stageStatus = map[string]string{
	pipeline.StageResearch: StatusSearching,
	pipeline.StageWrite:    StatusSynthesizing,
}

// Saver persists a finished report.
type Saver interface {
	SaveReport(ctx context.Context, topic, content string, sources []db.Source) (int64, error)
}

// Translator turns a run's event sequence into frames and saves the report
// of a successful run. One Translator serves any number of runs.
type Translator struct {
	saver  Saver
	logger *zap.Logger
}

// NewTranslator creates a translator. A nil saver disables persistence.
func NewTranslator(saver Saver, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{saver: saver, logger: logger}
}

// run holds the per-run translation state.
type run struct {
	w          FrameWriter
	logger     *zap.Logger
	fullReport strings.Builder
	writeErr   error
}

// emit writes a frame. After the first write failure the client is assumed
// gone: the failure is logged once and later frames are dropped.
func (r *run) emit(f Frame) {
	if r.writeErr != nil {
		return
	}
	if err := r.w.WriteFrame(f); err != nil {
		r.writeErr = err
		r.logger.Warn("client write failed, dropping remaining frames",
			zap.Stringer("frame", f), zap.Error(err))
	}
}

// Translate consumes events and writes frames to w, ending with exactly one
// complete or error frame. It returns the run's error, if any, after the
// error frame has been written. Persistence failures are logged and never
// returned.
func (t *Translator) Translate(ctx context.Context, topic string, events iter.Seq2[pipeline.Event, error], w FrameWriter) error {
	r := &run{w: w, logger: t.logger}

	for ev, err := range events {
		if err != nil {
			r.emit(Error(err.Error()))
			return err
		}
		r.translate(ev)
	}

	if r.fullReport.Len() > 0 {
		t.save(ctx, topic, r.fullReport.String())
	}
	r.emit(Complete())
	return nil
}

func (r *run) translate(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventStageStarted:
		if msg, ok := stageStatus[ev.Stage]; ok {
			r.emit(Status(msg))
		}

	case pipeline.EventModelToken:
		if ev.Token == "" {
			return
		}
		r.fullReport.WriteString(ev.Token)
		r.emit(Chunk(ev.Token))

	case pipeline.EventStageCompleted:
		// tokens already carried the content; only the stage's log line is new
		if msg := ev.Partial.LastLog(); msg != "" {
			r.emit(Status(msg))
		}

	case pipeline.EventStateUpdated:
		msg := ev.Partial.LastLog()
		if msg == "" {
			msg = StatusWorking
		}
		r.emit(Status(msg))

		if ev.Stage == pipeline.StageWrite && ev.Partial.Report != "" {
			r.fullReport.Reset()
			r.fullReport.WriteString(ev.Partial.Report)
			r.emit(Text(ev.Partial.Report))
		}
	}
}

// save runs detached from ctx so a client that disconnects after the last
// chunk does not cancel it.
func (t *Translator) save(ctx context.Context, topic, report string) {
	if t.saver == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	id, err := t.saver.SaveReport(saveCtx, topic, report, []db.Source{})
	if err != nil {
		t.logger.Error("failed to save report", zap.String("topic", topic), zap.Error(err))
		return
	}
	t.logger.Info("report saved", zap.Int64("report_id", id), zap.Int("chars", len(report)))
}

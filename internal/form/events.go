package form

import (
	"log/slog"

	"github.com/a3tai/textricator/internal/text"
)

// Listener observes the FSM parser and the record builder. Implementations
// must not retain the StateValue or Record past the call.
type Listener interface {
	OnText(t text.Text)
	OnHeader(t text.Text)
	OnFooter(t text.Text)
	OnLeftMargin(t text.Text)
	OnRightMargin(t text.Text)
	OnExclude(t text.Text, condition string)
	OnCheckCondition(condition, expression string, match bool)
	OnCheckTransition(state, condition, nextState string, match bool, message string)
	OnNoPrevious(variable string)
	OnPageStateChange(page int, state string)
	OnStateChange(page int, state string)
	OnVariableSet(t text.Text, state, name, value string)
	OnLinkConflict(t text.Text, state, kept, dropped string)
	OnFSMEnd()

	OnStateValue(sv StateValue)
	OnNewRecord(typeID string)
	OnRecordAppend(typeID string)
	OnRecordsEnd()
}

// NopListener ignores every event. Embed it to implement only some methods.
type NopListener struct{}

func (NopListener) OnText(text.Text) {}
func (NopListener) OnHeader(text.Text) {}
func (NopListener) OnFooter(text.Text) {}
func (NopListener) OnLeftMargin(text.Text) {}
func (NopListener) OnRightMargin(text.Text) {}
func (NopListener) OnExclude(text.Text, string) {}
func (NopListener) OnCheckCondition(string, string, bool) {}
func (NopListener) OnCheckTransition(string, string, string, bool, string) {}
func (NopListener) OnNoPrevious(string) {}
func (NopListener) OnPageStateChange(int, string) {}
func (NopListener) OnStateChange(int, string) {}
func (NopListener) OnVariableSet(text.Text, string, string, string) {}
func (NopListener) OnLinkConflict(text.Text, string, string, string) {}
func (NopListener) OnFSMEnd() {}
func (NopListener) OnStateValue(StateValue) {}
func (NopListener) OnNewRecord(string) {}
func (NopListener) OnRecordAppend(string) {}
func (NopListener) OnRecordsEnd() {}

// LogListener writes events to a slog.Logger. Traces go to debug level;
// transition messages and link conflicts are warnings.
type LogListener struct {
	Logger *slog.Logger
}

// NewLogListener returns a LogListener, using slog.Default when logger is nil.
func NewLogListener(logger *slog.Logger) *LogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener{Logger: logger}
}

func textAttrs(t text.Text) slog.Attr {
	return slog.Group("text",
		slog.Int("page", t.Page),
		slog.Float64("ulx", t.ULX),
		slog.Float64("uly", t.ULY),
		slog.String("content", t.Content),
	)
}

func (l *LogListener) OnText(t text.Text) { l.Logger.Debug("text", textAttrs(t)) }

func (l *LogListener) OnHeader(t text.Text) { l.Logger.Debug("skipped header", textAttrs(t)) }

func (l *LogListener) OnFooter(t text.Text) { l.Logger.Debug("skipped footer", textAttrs(t)) }

func (l *LogListener) OnLeftMargin(t text.Text) {
	l.Logger.Debug("skipped left margin", textAttrs(t))
}

func (l *LogListener) OnRightMargin(t text.Text) {
	l.Logger.Debug("skipped right margin", textAttrs(t))
}

func (l *LogListener) OnExclude(t text.Text, condition string) {
	l.Logger.Debug("excluded", textAttrs(t), "condition", condition)
}

func (l *LogListener) OnCheckCondition(condition, expression string, match bool) {
	l.Logger.Debug("condition", "id", condition, "expr", expression, "match", match)
}

func (l *LogListener) OnCheckTransition(state, condition, nextState string, match bool, message string) {
	if match && message != "" {
		l.Logger.Warn(message, "state", state, "condition", condition, "next", nextState)
		return
	}
	l.Logger.Debug("transition", "state", state, "condition", condition, "next", nextState, "match", match)
}

func (l *LogListener) OnNoPrevious(variable string) {
	l.Logger.Debug("no previous text, using current value", "variable", variable)
}

func (l *LogListener) OnPageStateChange(page int, state string) {
	l.Logger.Debug("new page", "page", page, "state", state)
}

func (l *LogListener) OnStateChange(page int, state string) {
	l.Logger.Debug("state change", "page", page, "state", state)
}

func (l *LogListener) OnVariableSet(t text.Text, state, name, value string) {
	l.Logger.Debug("variable set", textAttrs(t), "state", state, "name", name, "value", value)
}

func (l *LogListener) OnLinkConflict(t text.Text, state, kept, dropped string) {
	l.Logger.Warn("conflicting links while combining text, dropping later link",
		textAttrs(t), "state", state, "kept", kept, "dropped", dropped)
}

func (l *LogListener) OnFSMEnd() { l.Logger.Debug("fsm end") }

func (l *LogListener) OnStateValue(sv StateValue) {
	l.Logger.Debug("state value", "page", sv.Page, "state", sv.StateID, "values", len(sv.Values))
}

func (l *LogListener) OnNewRecord(typeID string) { l.Logger.Debug("new record", "type", typeID) }

func (l *LogListener) OnRecordAppend(typeID string) {
	l.Logger.Debug("append to record", "type", typeID)
}

func (l *LogListener) OnRecordsEnd() { l.Logger.Debug("records end") }

// Option configures an FSMParser or RecordBuilder.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	listener Listener
}

// WithLogger sets the logger used for diagnostics. When no listener is set,
// events are logged through it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithListener sets the event listener.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.listener == nil {
		o.listener = NewLogListener(o.logger)
	}
	return o
}

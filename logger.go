package regioncache

// Fields carries structured context for a log line. The cache always sets
// "region"; per-key events add "key".
type Fields map[string]any

// Logger is the leveled logger the cache writes to. Adapters for zap, logrus,
// zerolog and log/slog live under log/. A nil Logger in Options disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// regionLogger stamps every line with the region name.
type regionLogger struct {
	region string
	next   Logger
}

func (l regionLogger) with(f Fields) Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out["region"] = l.region
	return out
}

func (l regionLogger) Debug(msg string, f Fields) { l.next.Debug(msg, l.with(f)) }
func (l regionLogger) Info(msg string, f Fields)  { l.next.Info(msg, l.with(f)) }
func (l regionLogger) Warn(msg string, f Fields)  { l.next.Warn(msg, l.with(f)) }
func (l regionLogger) Error(msg string, f Fields) { l.next.Error(msg, l.with(f)) }

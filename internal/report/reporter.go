package report

//go:generate mockgen -source=reporter.go -destination=mocks/mock_reporter.go -package=mocks

// Reporter receives envelopes from the samplers. Reporting is
// fire-and-forget: implementations own their failure handling and must not
// block the caller for long.
type Reporter interface {
	Report(env Envelope, opts Options)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(env Envelope, opts Options)

// Report calls f(env, opts).
func (f ReporterFunc) Report(env Envelope, opts Options) {
	f(env, opts)
}

// Nop returns a Reporter that discards every envelope.
func Nop() Reporter {
	return ReporterFunc(func(Envelope, Options) {})
}

// Multi fans an envelope out to every reporter in order.
type Multi []Reporter

// Report forwards env to each reporter.
func (m Multi) Report(env Envelope, opts Options) {
	for _, r := range m {
		r.Report(env, opts)
	}
}

// Package audit records every access decision the gate makes, allow and
// deny alike, to an append-only sink.
//
// The sink is a best-effort side channel: a failure to write an audit
// record never blocks or fails the access decision itself. The composer
// records the failing layer internally even when the external response
// deliberately hides it (the anti-enumeration "not found" substitution),
// so operators can always reconstruct why a request was denied.
//
// Implementations: LogSink (structured logrus output), FileSink (rotating
// JSON lines file), SQLSink (relational table), MultiSink (asynchronous
// fan-out to several sinks) and NopSink.
package audit

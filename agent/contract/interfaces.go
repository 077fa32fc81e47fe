package contract

import "context"

// PolicyOracle is the external reasoning component behind every worker:
// given a structured context, it returns either a user-facing utterance or
// one or more tool invocation requests. Its internals are not this
// package's business.
type PolicyOracle interface {
	Respond(ctx context.Context, wc WorkerContext) (OracleOutput, error)
	RespondStream(ctx context.Context, wc WorkerContext) (OracleStream, error)
}

// OracleStream yields an oracle response incrementally. Recv returns
// utterance fragments until io.EOF; Output returns the complete assembled
// output and is only valid once Recv has reported io.EOF.
type OracleStream interface {
	Recv() (string, error)
	Output() (OracleOutput, error)
	Close()
}

// Judge answers the two natural-language yes/no questions the router is
// allowed to ask. Implementations must treat errors and out-of-schema
// answers as "no".
type Judge interface {
	Judge(ctx context.Context, intent Intent, utterance string) (bool, error)
}

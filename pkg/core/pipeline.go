package core

import (
	"log/slog"
	"runtime"
	"sync"

	"winlib/pkg/progress"
)

// Stats summarises one Run.
type Stats struct {
	Members           int // Ordinary members decoded
	Kept              int
	Excluded          int // Excluded members, captured or not
	ExcludedByOffset  int
	ExcludedAsImport  int
	ImportDescriptors int
	ImportObjects     int // Regular objects with an .idata$ section
	BigObjects        int
}

// Result holds the rebuilt archives. Excluded is nil unless the policy
// captures excluded members.
type Result struct {
	Kept     []byte
	Excluded []byte
	Stats    Stats
}

type runConfig struct {
	workers int
	tracker *progress.Tracker
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithWorkers bounds the number of members classified concurrently.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *runConfig) {
		c.workers = n
	}
}

// WithTracker reports classification progress to t. Run starts t's
// periodic logging; the caller must call t.Stop once Run returns.
func WithTracker(t *progress.Tracker) Option {
	return func(c *runConfig) {
		c.tracker = t
	}
}

// WithLogger logs member decisions at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

func newRunConfig(opts []Option) runConfig {
	cfg := runConfig{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.NumCPU()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// Run decodes source once, classifies every member, applies policy and
// encodes the kept members, plus the excluded members when the policy
// captures them. Any failure is returned as a *PipelineError and no output
// is produced.
func Run(source []byte, policy Policy, opts ...Option) (*Result, error) {
	cfg := newRunConfig(opts)

	members, err := Decode(source)
	if err != nil {
		return nil, &PipelineError{Stage: StageDecode, Err: err}
	}
	cfg.logger.Debug("decoded archive", "members", len(members), "bytes", len(source))

	classified, err := classifyMembers(members, cfg)
	if err != nil {
		return nil, &PipelineError{Stage: StageClassify, Err: err}
	}

	parts, reasons := partition(classified, policy)
	stats := Stats{Members: len(members), Kept: len(parts.Kept)}
	for i, c := range classified {
		switch {
		case c.Classification.Kind == KindImportDescriptor:
			stats.ImportDescriptors++
		case c.Classification.HasImportSection:
			stats.ImportObjects++
		}
		if c.Classification.Format == FormatBigObj {
			stats.BigObjects++
		}
		switch reasons[i] {
		case ReasonOffset:
			stats.ExcludedByOffset++
		case ReasonImportMember:
			stats.ExcludedAsImport++
		}
		if reasons[i] != ReasonKept {
			stats.Excluded++
		}
		cfg.logger.Debug("member",
			"offset", c.Member.Offset,
			"name", c.Member.DisplayName(),
			"kind", c.Classification.Kind.String(),
			"format", c.Classification.Format.String(),
			"decision", reasons[i].String(),
		)
	}

	kept, err := Encode(parts.Kept)
	if err != nil {
		return nil, &PipelineError{Stage: StageEncodeKept, Err: err}
	}
	result := &Result{Kept: kept, Stats: stats}
	if policy.CaptureExcluded {
		excluded, err := Encode(parts.Excluded)
		if err != nil {
			return nil, &PipelineError{Stage: StageEncodeExcluded, Err: err}
		}
		result.Excluded = excluded
	}
	return result, nil
}

// classifyMembers classifies members concurrently. Results keep the input
// order and the failure with the lowest index is the one reported, so the
// outcome does not depend on scheduling.
func classifyMembers(members []Member, cfg runConfig) ([]Classified, error) {
	cfg.tracker.Init(len(members))

	classified := make([]Classified, len(members))
	errs := make([]error, len(members))

	// Use a semaphore to limit concurrent goroutines
	sem := make(chan struct{}, cfg.workers)
	var wg sync.WaitGroup
	for i := range members {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m := members[i]
			c, err := classify(m.Payload)
			if err != nil {
				errs[i] = &UnrecognizedMemberError{Offset: m.Offset, Name: m.Name, Cause: err}
				return
			}
			classified[i] = Classified{Member: m, Classification: c}
			cfg.tracker.MemberDone(len(m.Payload))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return classified, nil
}

// List returns the offset, size and name of every member in container
// order. Members are not classified.
func List(source []byte) ([]Entry, error) {
	members, err := Decode(source)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(members))
	for i, m := range members {
		entries[i] = Entry{Offset: m.Offset, Size: m.Size, Name: m.Name, Payload: m.Payload}
	}
	return entries, nil
}

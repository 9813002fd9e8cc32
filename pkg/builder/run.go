// Package builder runs one build of the trust list: it fetches every
// configured source, extracts the keys, and writes the compressed artifact
// together with the auxiliary reference files.
package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/auxfiles"
	"github.com/jetstack/dcc-trustlist/pkg/fetch"
	"github.com/jetstack/dcc-trustlist/pkg/logs"
	"github.com/jetstack/dcc-trustlist/pkg/output"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist/envelope"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist/keys"
)

// ErrAllSourcesFailed is returned when no source contributed to the trust
// list. Nothing is written in that case.
var ErrAllSourcesFailed = errors.New("every source failed, not writing the trust list")

// Options change how failures are handled.
type Options struct {
	// Strict fails the build when any source or auxiliary file fails. A
	// failed source stops the build before anything is written. By default a
	// failed source only loses its own keys.
	Strict bool
	// SkipAuxFiles writes the trust list only.
	SkipAuxFiles bool
}

// SourceReport is the outcome for one source.
type SourceReport struct {
	Name string
	// Keys is the number of records the source contributed.
	Keys int
	// Skipped counts keys left out because of an unsupported algorithm, a
	// decode error, or a duplicate kid.
	Skipped int
	// Err is set when the source contributed nothing.
	Err error
}

// Report summarizes a build.
type Report struct {
	Sources []SourceReport
	// Records is the number of records written.
	Records int
	// AuxFilesErr holds the auxiliary files that could not be copied.
	AuxFilesErr error
}

// SourceErrors returns the failures of all failed sources, or nil.
func (r *Report) SourceErrors() error {
	var result *multierror.Error
	for _, s := range r.Sources {
		if s.Err != nil {
			result = multierror.Append(result, fmt.Errorf("source %q: %w", s.Name, s.Err))
		}
	}
	return result.ErrorOrNil()
}

// Build runs the pipeline described by cfg. Sources are fetched concurrently
// but always assembled in the order they are configured. metrics may be nil.
func Build(ctx context.Context, cfg Config, opts Options, fetcher fetch.Fetcher, out output.Output, metrics *Metrics) (*Report, error) {
	logger := klog.FromContext(ctx).WithName("builder")
	if metrics == nil {
		metrics = NewMetrics()
	}

	bodies, fetchErrs := fetchAll(ctx, cfg.Sources, fetcher)

	report := &Report{Sources: make([]SourceReport, len(cfg.Sources))}
	assembler := trustlist.NewAssembler(cfg.DuplicateKIDs)

	for i, src := range cfg.Sources {
		srcReport := &report.Sources[i]
		srcReport.Name = src.Name
		srcLogger := logger.WithValues("source", src.Name)
		srcCtx := klog.NewContext(ctx, srcLogger)

		if fetchErrs[i] != nil {
			srcReport.Err = fetchErrs[i]
			recordFailure(srcLogger, metrics, src, fetchErrs[i])
			continue
		}

		records, skipped, err := extract(srcCtx, src, bodies[i], metrics)
		srcReport.Skipped = skipped
		if err != nil {
			srcReport.Err = err
			recordFailure(srcLogger, metrics, src, err)
			continue
		}

		for _, rec := range records {
			before := assembler.Len()
			if err := assembler.Add(srcCtx, src.Name, rec); err != nil {
				return report, err
			}
			if assembler.Len() == before {
				srcReport.Skipped++
				metrics.skippedKeys.WithLabelValues(src.Name, skipDuplicate).Inc()
				continue
			}
			srcReport.Keys++
			metrics.keys.WithLabelValues(src.Name, string(rec.Algorithm())).Inc()
		}

		srcLogger.Info("processed source", "keys", srcReport.Keys, "skipped", srcReport.Skipped)
	}

	if err := report.SourceErrors(); err != nil {
		if opts.Strict {
			return report, fmt.Errorf("strict mode: %w", err)
		}
		if len(cfg.Sources) > 0 && allFailed(report.Sources) {
			return report, fmt.Errorf("%w: %w", ErrAllSourcesFailed, err)
		}
	}

	records := assembler.Len()
	if err := assembler.Write(ctx, out, cfg.Artifact); err != nil {
		return report, fmt.Errorf("failed to write %s: %w", cfg.Artifact, err)
	}
	report.Records = records
	metrics.records.Set(float64(records))
	logger.Info("wrote trust list", "name", cfg.Artifact, "records", records)

	if opts.SkipAuxFiles || len(cfg.AuxFiles.Files) == 0 {
		return report, nil
	}

	if err := auxfiles.Copy(ctx, cfg.AuxFiles, fetcher, out); err != nil {
		report.AuxFilesErr = err
		if opts.Strict {
			return report, fmt.Errorf("strict mode: auxiliary files: %w", err)
		}
		logger.Error(err, "some auxiliary files could not be copied")
	}

	return report, nil
}

// fetchAll retrieves every source concurrently. The results are indexed like
// sources.
func fetchAll(ctx context.Context, sources []Source, fetcher fetch.Fetcher) ([][]byte, []error) {
	bodies := make([][]byte, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bodies[i], errs[i] = fetcher.Fetch(ctx, src.URL)
		}()
	}
	wg.Wait()

	return bodies, errs
}

// extract decodes the response of one source. Keys that cannot be used are
// skipped and counted; an envelope error discards the whole source.
func extract(ctx context.Context, src Source, body []byte, metrics *Metrics) ([]trustlist.TrustedKeyRecord, int, error) {
	logger := klog.FromContext(ctx)

	decoder, err := envelope.New(src.Kind, src.Country)
	if err != nil {
		return nil, 0, err
	}

	var records []trustlist.TrustedKeyRecord
	skipped := 0
	for entry, err := range decoder.Decode(body) {
		if err != nil {
			return nil, skipped, err
		}
		keyLogger := logger.WithValues("kid", entry.KID)

		params, err := keys.Extract(entry.DER)
		switch {
		case errors.Is(err, keys.ErrUnsupportedAlgorithm):
			keyLogger.V(logs.Debug).Info("skipping key", "reason", err.Error())
			metrics.skippedKeys.WithLabelValues(src.Name, skipUnsupported).Inc()
			skipped++
			continue
		case err != nil:
			keyLogger.Error(err, "skipping key")
			metrics.skippedKeys.WithLabelValues(src.Name, skipDecodeError).Inc()
			skipped++
			continue
		}

		rec := trustlist.NewRecord(entry.KID, entry.Usage, params)
		keyLogger.V(logs.Trace).Info("extracted key", "algo", rec.Algorithm(), "country", entry.Country)
		records = append(records, rec)
	}

	return records, skipped, nil
}

func recordFailure(logger klog.Logger, metrics *Metrics, src Source, err error) {
	kind := "other"
	var netErr *fetch.NetworkError
	var decodeErr *envelope.DecodeError
	switch {
	case errors.As(err, &netErr):
		kind = "network"
	case errors.As(err, &decodeErr):
		kind = "envelope"
	}
	metrics.sourceFailures.WithLabelValues(src.Name, kind).Inc()
	logger.Error(err, "source contributed no keys", "kind", kind)
}

func allFailed(sources []SourceReport) bool {
	for _, s := range sources {
		if s.Err == nil {
			return false
		}
	}
	return true
}

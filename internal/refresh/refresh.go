package refresh

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"livemon/internal/catalog"
	"livemon/internal/config"
	"livemon/internal/logging"
	"livemon/internal/remote"
	"livemon/internal/services"
	"livemon/internal/textutil"
)

const componentName = "refresh"

// Fetcher retrieves a catalogue document that passed the freshness gates.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*remote.Payload, error)
}

// SourceReport describes what one refresh did to one source.
type SourceReport struct {
	Address         string         `json:"address"`
	Result          int            `json:"result"`
	Kind            string         `json:"kind,omitempty"`
	Error           string         `json:"error,omitempty"`
	Platforms       catalog.Counts `json:"platforms"`
	Channels        catalog.Counts `json:"channels"`
	FailedPlatforms int            `json:"failed_platforms,omitempty"`
}

// Report summarizes a refresh pass.
type Report struct {
	Sources      []SourceReport `json:"sources"`
	RootsAdded   []string       `json:"roots_added,omitempty"`
	RootsRemoved []string       `json:"roots_removed,omitempty"`
	Platforms    int            `json:"platforms"`
	Channels     int            `json:"channels"`
	Failures     map[string]int `json:"failures,omitempty"`
	Elapsed      time.Duration  `json:"elapsed"`
}

// Service reconciles the source tree against the remote catalogues.
type Service struct {
	roots       []string
	suffix      string
	concurrency int
	fetcher     Fetcher
	codec       *catalog.Codec
	ignore      catalog.IgnoreSet
	collator    *textutil.Collator
	logger      *slog.Logger
}

// New constructs a refresh Service.
func New(cfg *config.Config, fetcher Fetcher, codec *catalog.Codec, logger *slog.Logger) *Service {
	concurrency := cfg.Sources.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		roots:       append([]string(nil), cfg.Sources.Roots...),
		suffix:      cfg.Sources.Suffix,
		concurrency: concurrency,
		fetcher:     fetcher,
		codec:       codec,
		ignore:      catalog.NewIgnoreSet(cfg.Sources.Ignore),
		collator:    textutil.NewCollator(textutil.DefaultTag),
		logger:      logging.NewComponentLogger(logger, componentName),
	}
}

type fetched[T any] struct {
	items []T
	err   error
}

type platformRef struct {
	source   int
	platform *catalog.Platform
}

// Refresh reconciles tree against the configured roots and returns the updated
// tree. The returned slice may differ from tree when roots were added or
// removed; surviving items are the same pointers, mutated in place.
func (s *Service) Refresh(ctx context.Context, tree []*catalog.Source) ([]*catalog.Source, Report) {
	start := time.Now()
	ctx = services.WithPhase(ctx, componentName)
	logger := logging.WithContext(ctx, s.logger)

	sources, added, removed := catalog.SyncRoots(tree, s.roots)
	report := Report{
		Sources:      make([]SourceReport, len(sources)),
		RootsAdded:   added,
		RootsRemoved: removed,
		Failures:     map[string]int{},
	}
	for _, root := range removed {
		logger.Info("source removed from configuration",
			logging.String(logging.FieldEventType, "source_removed"),
			logging.String(logging.FieldSource, root),
		)
	}

	indexURLs := make([]string, len(sources))
	for i, src := range sources {
		indexURLs[i] = src.Address + s.suffix
		report.Sources[i] = SourceReport{Address: src.Address}
	}
	indexes := fetchAll(ctx, s, indexURLs, s.codec.DecodePlatformIndex)

	var refs []platformRef
	for i, src := range sources {
		outcome := indexes[i]
		if outcome.err != nil {
			s.failSource(ctx, src, &report, i, outcome.err)
			continue
		}
		diff := s.mergePlatforms(src, outcome.items)
		report.Sources[i].Platforms = diff.Counts()
		for _, pf := range src.Platforms {
			refs = append(refs, platformRef{source: i, platform: pf})
		}
	}

	channelURLs := make([]string, len(refs))
	for i, ref := range refs {
		channelURLs[i] = ref.platform.Address
	}
	lists := fetchAll(ctx, s, channelURLs, s.codec.DecodeChannelList)

	for i, ref := range refs {
		sr := &report.Sources[ref.source]
		outcome := lists[i]
		if outcome.err != nil {
			ref.platform.Result = 0
			sr.FailedPlatforms++
			report.Failures[services.Kind(outcome.err)]++
			logging.WarnWithContext(logger, "platform refresh failed; keeping previous channels", "platform_refresh_failed",
				logging.String(logging.FieldSource, sources[ref.source].Address),
				logging.String("platform", ref.platform.Address),
				logging.String(logging.FieldErrorCode, services.Kind(outcome.err)),
				logging.Error(outcome.err),
				logging.String(logging.FieldImpact, "platform channels excluded from probing this cycle"),
				logging.String(logging.FieldErrorHint, "check the platform URL and its Last-Modified header"),
			)
			continue
		}
		diff := s.mergeChannels(ref.platform, outcome.items)
		sr.Channels.Add(diff.Counts())
	}

	for i, src := range sources {
		sr := &report.Sources[i]
		if sr.Kind != "" {
			continue
		}
		if sr.Platforms.Changed() || sr.Channels.Changed() {
			src.Result = 1
		} else {
			src.Result = catalog.NextResult(src.Result)
		}
		sr.Result = src.Result
		logger.Info("source refreshed",
			logging.String(logging.FieldEventType, "source_refreshed"),
			logging.String(logging.FieldSource, src.Address),
			logging.Int("result", src.Result),
			logging.Int("platforms", len(src.Platforms)),
			logging.Int("added", sr.Platforms.Added+sr.Channels.Added),
			logging.Int("removed", sr.Platforms.Removed+sr.Channels.Removed),
			logging.Int("updated", sr.Platforms.Updated+sr.Channels.Updated),
		)
	}

	for _, src := range sources {
		report.Platforms += len(src.Platforms)
	}
	report.Channels = catalog.CountChannels(sources)
	report.Elapsed = time.Since(start)
	return sources, report
}

func (s *Service) failSource(ctx context.Context, src *catalog.Source, report *Report, idx int, err error) {
	src.Result = 0
	kind := services.Kind(err)
	report.Sources[idx].Kind = kind
	report.Sources[idx].Error = err.Error()
	report.Failures[kind]++
	logging.WarnWithContext(logging.WithContext(services.WithSource(ctx, src.Address), s.logger),
		"source refresh failed; keeping previous subtree", "source_refresh_failed",
		logging.String(logging.FieldErrorCode, kind),
		logging.Error(err),
		logging.String(logging.FieldImpact, "source excluded from probing this cycle"),
		logging.String(logging.FieldErrorHint, "check the source index URL and its Last-Modified header"),
	)
}

func (s *Service) mergePlatforms(src *catalog.Source, fresh []*catalog.Platform) catalog.Diff[*catalog.Platform] {
	filtered := make([]*catalog.Platform, 0, len(fresh))
	for _, pf := range fresh {
		raw := pf.Address
		pf.Address = catalog.JoinSource(src.Address, raw)
		if s.ignore.Match(raw, pf.Address) {
			continue
		}
		filtered = append(filtered, pf)
	}
	diff := catalog.Reconcile(src.Platforms, filtered, catalog.PlatformKeys)
	src.Platforms = diff.Merged
	return diff
}

func (s *Service) mergeChannels(pf *catalog.Platform, fresh []*catalog.Channel) catalog.Diff[*catalog.Channel] {
	filtered := make([]*catalog.Channel, 0, len(fresh))
	for _, ch := range fresh {
		raw := ch.Address
		ch.Address = catalog.ResolveChannel(pf.Address, raw)
		if s.ignore.Match(raw, ch.Address) {
			continue
		}
		filtered = append(filtered, ch)
	}
	diff := catalog.Reconcile(pf.Channels, filtered, catalog.ChannelKeys)
	pf.Channels = diff.Merged
	catalog.SortChannels(s.collator, pf.Channels)
	pf.Result = 1
	return diff
}

// fetchAll downloads and decodes every url with at most s.concurrency requests
// in flight. Results are positional.
func fetchAll[T any](ctx context.Context, s *Service, urls []string, decode func([]byte) ([]T, error)) []fetched[T] {
	results := make([]fetched[T], len(urls))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, url := range urls {
		g.Go(func() error {
			payload, err := s.fetcher.Fetch(ctx, url)
			if err != nil {
				results[i].err = err
				return nil
			}
			items, err := decode(payload.Body)
			if err != nil {
				results[i].err = services.Wrap(services.ErrParse, componentName, "decode", url, err)
				return nil
			}
			results[i].items = items
			return nil
		})
	}
	_ = g.Wait()
	return results
}

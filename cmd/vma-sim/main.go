package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/Anekoique/axvma/internal/cfg"
	"github.com/Anekoique/axvma/pkg/logger"
	"github.com/Anekoique/axvma/pkg/memaddr"
	"github.com/Anekoique/axvma/pkg/pager"
	"github.com/Anekoique/axvma/pkg/vmfile"
)

func main() {
	config, err := cfg.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %s", err)
	}

	if err := run(context.Background(), config); err != nil {
		log.Fatalf("simulation failed: %s", err)
	}
}

func run(ctx context.Context, config cfg.Config) error {
	l, err := logger.NewLogger(ctx, logger.LoggerConfig{
		ServiceName:   config.ServiceName,
		IsDevelopment: true,
		IsDebug:       config.Debug,
	})
	if err != nil {
		return fmt.Errorf("could not create logger: %w", err)
	}
	defer l.Sync()

	zap.ReplaceGlobals(l)

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	zap.L().Info("starting simulation",
		zap.Int64("seed", seed),
		logger.WithPageSize(config.PageSize),
		zap.Int("regions", config.RegionCount),
		zap.Int("faults", config.FaultCount),
		zap.Int("workers", config.FaultWorkers),
	)

	dir, err := os.MkdirTemp("", "vma-sim-*")
	if err != nil {
		return fmt.Errorf("failed to create backing dir: %w", err)
	}
	defer os.RemoveAll(dir)

	regionBytes := uint64(config.RegionPages) * uint64(config.PageSize)

	rnd := rand.New(rand.NewSource(seed))

	paths := make([]string, config.RegionCount)
	for i := range paths {
		path := filepath.Join(dir, fmt.Sprintf("region-%02d.bin", i))

		data := make([]byte, regionBytes)
		rnd.Read(data)

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write backing file: %w", err)
		}

		paths[i] = path
	}

	registry := vmfile.NewRegistry(nil)
	defer registry.Close()

	store := pager.NewFrameStore()

	p, err := pager.New(store, noop.NewMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create pager: %w", err)
	}

	// Regions are laid out with a region-sized hole between them so the
	// random traffic also hits unmapped addresses.
	stride := 2 * regionBytes
	window := memaddr.RangeFromSize(config.BaseAddr, uint64(config.RegionCount)*stride)

	for i, path := range paths {
		file, err := registry.GetFile(path)
		if err != nil {
			return fmt.Errorf("failed to open backing file: %w", err)
		}

		rng := memaddr.RangeFromSize(config.BaseAddr.Add(uint64(i)*stride), regionBytes)

		if _, err := p.Map(ctx, rng, file, 0, config.PageSize); err != nil {
			return fmt.Errorf("failed to map region: %w", err)
		}
	}

	sim := &simulator{
		pager:  p,
		store:  store,
		window: window,
		config: config,
	}

	start := time.Now()
	sim.storm(ctx, seed)
	elapsed := time.Since(start)

	if err := p.Validate(); err != nil {
		return fmt.Errorf("mapping is inconsistent after simulation: %w", err)
	}

	sim.report(elapsed)

	return nil
}

type simulator struct {
	pager  *pager.Pager
	store  *pager.FrameStore
	window memaddr.Range
	config cfg.Config

	mu        sync.Mutex
	durations []time.Duration

	faults    atomic.Int64
	served    atomic.Int64
	missed    atomic.Int64
	failed    atomic.Int64
	unmaps    atomic.Int64
	prefaults atomic.Int64
	dropped   atomic.Int64
}

// storm fires random faults at the window from config.FaultWorkers
// goroutines, mixing in unmap and prefault sweeps at the configured
// cadence.
func (s *simulator) storm(ctx context.Context, seed int64) {
	var wg sync.WaitGroup

	perWorker := s.config.FaultCount / s.config.FaultWorkers

	for worker := range s.config.FaultWorkers {
		wg.Go(func() {
			rnd := rand.New(rand.NewSource(seed + int64(worker)))

			local := make([]time.Duration, 0, perWorker)

			for range perWorker {
				addr := s.randomAddr(rnd)

				start := time.Now()
				err := s.pager.HandleFault(ctx, addr)
				local = append(local, time.Since(start))

				if err == nil {
					s.served.Add(1)
				} else {
					var unmappedErr pager.UnmappedAddressError
					if errors.As(err, &unmappedErr) {
						s.missed.Add(1)
					} else {
						s.failed.Add(1)
						zap.L().Error("fault failed", logger.WithAddress(addr), zap.Error(err))
					}
				}

				n := s.faults.Add(1)

				if s.config.UnmapEvery > 0 && n%int64(s.config.UnmapEvery) == 0 {
					s.unmapRandom(ctx, rnd)
				}

				if s.config.PrefaultEvery > 0 && n%int64(s.config.PrefaultEvery) == 0 {
					s.prefaultRandom(ctx, rnd)
				}
			}

			s.mu.Lock()
			s.durations = append(s.durations, local...)
			s.mu.Unlock()
		})
	}

	wg.Wait()
}

func (s *simulator) randomAddr(rnd *rand.Rand) memaddr.VirtAddr {
	return s.window.Start.Add(uint64(rnd.Int63n(int64(s.window.Size()))))
}

// unmapRandom removes a small random range and releases the frames of
// the populated pages that went with it.
func (s *simulator) unmapRandom(ctx context.Context, rnd *rand.Rand) {
	pageSize := s.config.PageSize

	pages := uint64(rnd.Intn(8) + 1)
	start := s.randomAddr(rnd).AlignDown(pageSize)

	removed := s.pager.Unmap(ctx, memaddr.RangeFromSize(start, pages*uint64(pageSize)))

	for _, segment := range removed {
		for page := range segment.PopulatedPages() {
			s.store.Drop(page)
			s.dropped.Add(1)
		}
	}

	s.unmaps.Add(1)
}

// prefaultRandom loads every remaining page of one randomly picked
// region.
func (s *simulator) prefaultRandom(ctx context.Context, rnd *rand.Rand) {
	regions := s.pager.Regions()
	if len(regions) == 0 {
		return
	}

	rng := regions[rnd.Intn(len(regions))].Range

	if err := s.pager.Prefault(ctx, rng); err != nil {
		zap.L().Error("prefault failed", logger.WithRange(rng), zap.Error(err))

		return
	}

	s.prefaults.Add(1)
}

func (s *simulator) report(elapsed time.Duration) {
	fmt.Printf("\nFAULTS\n")
	fmt.Printf("======\n")
	fmt.Printf("Issued: %d\n", s.faults.Load())
	fmt.Printf("Served: %d\n", s.served.Load())
	fmt.Printf("Unmapped misses: %d\n", s.missed.Load())
	fmt.Printf("Failed: %d\n", s.failed.Load())
	fmt.Printf("Unmap sweeps: %d\n", s.unmaps.Load())
	fmt.Printf("Prefault sweeps: %d\n", s.prefaults.Load())
	fmt.Printf("Dropped frames: %d\n", s.dropped.Load())
	fmt.Printf("Elapsed: %s\n", elapsed)

	if elapsed > 0 {
		fmt.Printf("Throughput: %.0f faults/s\n", float64(s.faults.Load())/elapsed.Seconds())
	}

	printDurationSummary("fault latencies", summarizeDurations(s.durations))

	var populated []int
	for _, region := range s.pager.Regions() {
		populated = append(populated, int(region.PopulatedCount())*int(s.config.PageSize))
	}

	printByteSummary("populated bytes per region", summarizeBytes(populated))

	fmt.Printf("\nFRAMES\n")
	fmt.Printf("======\n")
	fmt.Printf("Installed: %d\n", s.store.Len())
	fmt.Printf("Resident size: %s\n", humanize.IBytes(s.store.Bytes()))

	fmt.Printf("\nGRID\n")
	fmt.Printf("====\n")
	fmt.Printf("%s\n", s.pager.Visualize(s.window, s.config.PageSize, uint64(s.config.RegionPages)))
}

type intSummary struct {
	count, min, max, stddev, p50, p95, p99 uint64
}

func summarizeBytes(ints []int) intSummary {
	if len(ints) == 0 {
		return intSummary{}
	}

	// Sort to find percentiles, min, and max
	slices.Sort(ints)

	n := len(ints)

	// Helper for percentiles
	percentile := func(p float64) uint64 {
		idx := max(int(math.Ceil(p/100*float64(n)))-1, 0)

		return uint64(ints[idx])
	}

	// Basic stats
	var sum float64
	for _, r := range ints {
		sum += float64(r)
	}
	mean := sum / float64(n)

	// Standard deviation
	var varianceSum float64
	for _, r := range ints {
		diff := float64(r) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(n))

	return intSummary{
		count:  uint64(n),
		min:    uint64(ints[0]),
		max:    uint64(ints[n-1]),
		p50:    percentile(50),
		p95:    percentile(95),
		p99:    percentile(99),
		stddev: uint64(stdDev),
	}
}

func printByteSummary(label string, s intSummary) {
	fmt.Printf(`
==== %s ====
count: %d
min: %s
p50: %s
p95: %s
p99: %s
max: %s
stddev: %s
`, label, s.count, humanize.Bytes(s.min), humanize.Bytes(s.p50), humanize.Bytes(s.p95), humanize.Bytes(s.p99), humanize.Bytes(s.max), humanize.Bytes(s.stddev))
}

func printDurationSummary(label string, s durationSummary) {
	fmt.Printf(`
==== %s ====
count: %d
min: %s
p50: %s
p95: %s
p99: %s
max: %s
stddev: %s
`, label, s.count, s.minTime, s.p50, s.p95, s.p99, s.maxTime, s.stddev)
}

type durationSummary struct {
	count                                   int
	minTime, p50, p95, p99, maxTime, stddev time.Duration
}

func summarizeDurations(reads []time.Duration) durationSummary {
	if len(reads) == 0 {
		return durationSummary{}
	}

	// Sort to find percentiles, min, and max
	slices.Sort(reads)

	n := len(reads)

	// Helper for percentiles
	percentile := func(p float64) time.Duration {
		idx := max(int(math.Ceil(p/100*float64(n)))-1, 0)

		return reads[idx]
	}

	// Basic stats
	var sum float64
	for _, r := range reads {
		sum += float64(r)
	}
	mean := sum / float64(n)

	// Standard deviation
	var varianceSum float64
	for _, r := range reads {
		diff := float64(r) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(n))

	return durationSummary{
		count:   n,
		minTime: reads[0],
		maxTime: reads[n-1],
		p50:     percentile(50),
		p95:     percentile(95),
		p99:     percentile(99),
		stddev:  time.Duration(stdDev),
	}
}

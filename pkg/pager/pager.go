package pager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Anekoique/axvma/pkg/logger"
	"github.com/Anekoique/axvma/pkg/memaddr"
	"github.com/Anekoique/axvma/pkg/vma"
	"github.com/Anekoique/axvma/pkg/vmfile"
)

var tracer = otel.Tracer("github.com/Anekoique/axvma/pkg/pager")

// prefaultWorkers caps how many pages are loaded concurrently during a
// prefault sweep.
const prefaultWorkers = 8

type FaultType string

const (
	FaultTypeRead     FaultType = "read"
	FaultTypePrefault FaultType = "prefault"
)

type UnmappedAddressError struct {
	Addr memaddr.VirtAddr
}

func (e UnmappedAddressError) Error() string {
	return fmt.Sprintf("address %s not found in any mapping", e.Addr)
}

// Pager serves page faults for one address space. Mappings are tracked
// by a vma.Manager and the bytes of each loaded page are handed to a
// FrameInstaller.
//
// Structural changes (Map, Unmap, Clear) take the write lock, fault
// handling takes the read lock so independent faults run concurrently.
// Races between two faults on the same page are settled by the region's
// populated tracker.
type Pager struct {
	mu sync.RWMutex

	spaceID   string
	manager   *vma.Manager
	installer FrameInstaller
	metrics   Metrics
}

func New(installer FrameInstaller, meterProvider metric.MeterProvider) (*Pager, error) {
	if installer == nil {
		return nil, errors.New("frame installer is required")
	}

	spaceID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate space id: %w", err)
	}

	metrics, err := NewMetrics(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create pager metrics: %w", err)
	}

	return &Pager{
		spaceID:   spaceID.String(),
		manager:   vma.NewManager(),
		installer: installer,
		metrics:   metrics,
	}, nil
}

func (p *Pager) SpaceID() string {
	return p.spaceID
}

// Map adds a file-backed mapping for rng. Mapped ranges overlapping rng
// are carved out first and the segments that fell away are returned so
// the caller can release their frames.
func (p *Pager) Map(ctx context.Context, rng memaddr.Range, file vmfile.File, offset int64, pageSize memaddr.PageSize) ([]*vma.Region, error) {
	_, childSpan := tracer.Start(ctx, "map-region", trace.WithAttributes(
		attribute.String("space.id", p.spaceID),
		attribute.String("range", rng.String()),
		attribute.String("page.size", pageSize.String()),
	))
	defer childSpan.End()

	region, err := vma.NewRegion(rng, file, offset, pageSize)
	if err != nil {
		childSpan.RecordError(err)

		return nil, fmt.Errorf("failed to create region: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	replaced := p.manager.RemoveOverlapped(rng)

	if err := p.manager.Add(region); err != nil {
		childSpan.RecordError(err)

		return nil, fmt.Errorf("failed to add region: %w", err)
	}

	zap.L().Info("mapped region",
		logger.WithSpaceID(p.spaceID),
		logger.WithRange(rng),
		logger.WithFileOffset(offset),
		logger.WithPageSize(pageSize),
		zap.Int("replaced_segments", len(replaced)),
	)

	return replaced, nil
}

// Unmap removes every mapping overlapping rng. Regions only partially
// covered are split and their uncovered parts stay mapped. The removed
// segments are returned so the caller can release their frames.
func (p *Pager) Unmap(ctx context.Context, rng memaddr.Range) []*vma.Region {
	_, childSpan := tracer.Start(ctx, "unmap-range", trace.WithAttributes(
		attribute.String("space.id", p.spaceID),
		attribute.String("range", rng.String()),
	))
	defer childSpan.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := p.manager.RemoveOverlapped(rng)

	zap.L().Info("unmapped range",
		logger.WithSpaceID(p.spaceID),
		logger.WithRange(rng),
		zap.Int("removed_segments", len(removed)),
	)

	return removed
}

// HandleFault loads the page containing addr from its backing file and
// installs the bytes. A fault on an already populated page is a no-op.
func (p *Pager) HandleFault(ctx context.Context, addr memaddr.VirtAddr) error {
	return p.handleFault(ctx, addr, FaultTypeRead)
}

func (p *Pager) handleFault(ctx context.Context, addr memaddr.VirtAddr, faultType FaultType) error {
	ctx, span := tracer.Start(ctx, "page-fault")
	defer span.End()

	timer := p.metrics.Begin(p.metrics.FaultLatencyMetric)

	p.mu.RLock()
	defer p.mu.RUnlock()

	region, ok := p.manager.Find(addr)
	if !ok {
		return UnmappedAddressError{Addr: addr}
	}

	buf, err := region.LoadPage(addr)
	if err != nil {
		var populatedErr vma.AlreadyPopulatedError
		if errors.As(err, &populatedErr) {
			// Another fault won the race for this page.
			span.SetAttributes(attribute.Bool("pager.already_populated", true))

			zap.L().Debug("page already populated",
				logger.WithSpaceID(p.spaceID),
				logger.WithPage(populatedErr.Page),
			)

			return nil
		}

		span.RecordError(err)
		zap.L().Error("failed to load page",
			logger.WithSpaceID(p.spaceID),
			logger.WithAddress(addr),
			zap.Error(err),
		)

		return fmt.Errorf("failed to load page for address %s: %w", addr, err)
	}

	page := addr.AlignDown(region.PageSize)

	if err := p.installer.Install(ctx, page, buf); err != nil {
		span.RecordError(err)
		zap.L().Error("failed to install frame",
			logger.WithSpaceID(p.spaceID),
			logger.WithPage(page),
			zap.Error(err),
		)

		return fmt.Errorf("failed to install frame for page %s: %w", page, err)
	}

	p.metrics.PagesLoadedMetric.Add(ctx, 1, metric.WithAttributes(KV("fault.type", faultType)))
	p.metrics.BytesLoadedMetric.Add(ctx, int64(len(buf)), metric.WithAttributes(KV("fault.type", faultType)))

	timer.End(ctx, KV("fault.type", faultType))

	return nil
}

// Prefault loads every not yet populated page of rng that belongs to a
// mapping. Holes in rng with no mapping are skipped, as are pages whose
// mapping disappears before the load finishes.
func (p *Pager) Prefault(ctx context.Context, rng memaddr.Range) error {
	ctx, childSpan := tracer.Start(ctx, "prefault-range", trace.WithAttributes(
		attribute.String("space.id", p.spaceID),
		attribute.String("range", rng.String()),
	))
	defer childSpan.End()

	p.mu.RLock()

	var pages []memaddr.VirtAddr
	for _, region := range p.manager.Regions() {
		overlap := region.Range.Intersect(rng)
		if overlap.IsEmpty() {
			continue
		}

		for page := range overlap.Pages(region.PageSize) {
			if !region.IsPopulated(page) {
				pages = append(pages, page)
			}
		}
	}

	p.mu.RUnlock()

	childSpan.SetAttributes(attribute.Int("pager.prefault_pages", len(pages)))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(prefaultWorkers)

	for _, page := range pages {
		eg.Go(func() error {
			err := p.handleFault(egCtx, page, FaultTypePrefault)

			var unmappedErr UnmappedAddressError
			if errors.As(err, &unmappedErr) {
				// The mapping was removed between the snapshot and the
				// load.
				return nil
			}

			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to prefault range %s: %w", rng, err)
	}

	zap.L().Debug("prefaulted range",
		logger.WithSpaceID(p.spaceID),
		logger.WithRange(rng),
		zap.Int("pages", len(pages)),
	)

	return nil
}

// Clear drops every mapping.
func (p *Pager) Clear(ctx context.Context) {
	_, childSpan := tracer.Start(ctx, "clear-mappings")
	defer childSpan.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	count := p.manager.Len()
	p.manager.Clear()

	zap.L().Info("cleared mappings",
		logger.WithSpaceID(p.spaceID),
		zap.Int("regions", count),
	)
}

// Regions returns a snapshot of the current mappings.
func (p *Pager) Regions() []*vma.Region {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.manager.Regions())
}

func (p *Pager) Find(addr memaddr.VirtAddr) (*vma.Region, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.manager.Find(addr)
}

func (p *Pager) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.manager.Len()
}

func (p *Pager) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.manager.Validate()
}

// Visualize renders the pages of window as a character grid, one cell
// per page.
func (p *Pager) Visualize(window memaddr.Range, pageSize memaddr.PageSize, cols uint64) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.manager.Visualize(window, pageSize, cols)
}

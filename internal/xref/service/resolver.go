package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nickin919/WAIGO-sub001/internal/metrics"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
)

// UnknownManufacturer is used when a lookup carries no manufacturer.
const UnknownManufacturer = "Unknown"

// Resolution is the outcome of matching one part number.
type Resolution struct {
	PartNumber   string                  `json:"part_number"`
	Manufacturer string                  `json:"manufacturer"`
	WagoPart     *entity.WagoPart        `json:"wago_part,omitempty"`
	Matches      []entity.CrossReference `json:"matches"`
}

// IsWagoPart 精确命中规范零件
func (r *Resolution) IsWagoPart() bool {
	return r.WagoPart != nil
}

// HasEquivalent 命中交叉引用
func (r *Resolution) HasEquivalent() bool {
	return len(r.Matches) > 0
}

// Resolver matches part numbers against the WAGO catalog, then the cross-reference store.
// All methods are read-only.
type Resolver struct {
	parts           *repository.WagoPartRepository
	xrefs           *repository.CrossReferenceRepository
	catalogScope    string
	manufacturerMax int
}

func NewResolver(parts *repository.WagoPartRepository, xrefs *repository.CrossReferenceRepository, catalogScope string, manufacturerMax int) *Resolver {
	if manufacturerMax <= 0 {
		manufacturerMax = 200
	}
	return &Resolver{
		parts:           parts,
		xrefs:           xrefs,
		catalogScope:    catalogScope,
		manufacturerMax: manufacturerMax,
	}
}

// WithCatalog returns a resolver whose canonical lookups are scoped to catalogID.
func (r *Resolver) WithCatalog(catalogID string) *Resolver {
	scoped := *r
	scoped.catalogScope = catalogID
	return &scoped
}

// NormalizeManufacturer trims, defaults blank to Unknown and truncates.
func (r *Resolver) NormalizeManufacturer(manufacturer string) string {
	manufacturer = strings.TrimSpace(manufacturer)
	if manufacturer == "" {
		return UnknownManufacturer
	}
	return truncateRunes(manufacturer, r.manufacturerMax)
}

// FindWagoPart looks up a canonical part by exact part number. catalogID overrides
// the configured scope; both empty means unscoped. Returns nil, nil when absent.
func (r *Resolver) FindWagoPart(ctx context.Context, partNumber, catalogID string) (*entity.WagoPart, error) {
	if catalogID == "" {
		catalogID = r.catalogScope
	}
	part, err := r.parts.FindByPartNumber(ctx, strings.TrimSpace(partNumber), catalogID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find wago part %s: %w", partNumber, err)
	}
	return part, nil
}

// ResolveOne returns the canonical match, else the single best cross-reference, else nothing.
func (r *Resolver) ResolveOne(ctx context.Context, partNumber, manufacturer string) (*Resolution, error) {
	return r.resolve(ctx, "resolve_one", partNumber, manufacturer, 1)
}

// ListAll is ResolveOne returning every cross-reference match.
func (r *Resolver) ListAll(ctx context.Context, partNumber, manufacturer string) (*Resolution, error) {
	return r.resolve(ctx, "list_all", partNumber, manufacturer, 0)
}

// ListEquivalents skips the canonical branch and returns every ranked cross-reference.
func (r *Resolver) ListEquivalents(ctx context.Context, partNumber, manufacturer string) ([]entity.CrossReference, error) {
	manufacturer = r.NormalizeManufacturer(manufacturer)
	matches, err := r.xrefs.FindByOriginal(ctx, manufacturer, strings.TrimSpace(partNumber), 0)
	if err != nil {
		metrics.RecordResolution("suggest", metrics.ResultError)
		return nil, fmt.Errorf("find equivalents for %s: %w", partNumber, err)
	}
	if len(matches) > 0 {
		metrics.RecordResolution("suggest", metrics.ResultEquivalent)
	} else {
		metrics.RecordResolution("suggest", metrics.ResultNone)
	}
	return matches, nil
}

func (r *Resolver) resolve(ctx context.Context, caller, partNumber, manufacturer string, limit int) (*Resolution, error) {
	res := &Resolution{
		PartNumber:   strings.TrimSpace(partNumber),
		Manufacturer: r.NormalizeManufacturer(manufacturer),
		Matches:      []entity.CrossReference{},
	}

	part, err := r.FindWagoPart(ctx, res.PartNumber, "")
	if err != nil {
		metrics.RecordResolution(caller, metrics.ResultError)
		return nil, err
	}
	if part != nil {
		res.WagoPart = part
		metrics.RecordResolution(caller, metrics.ResultCanonical)
		return res, nil
	}

	matches, err := r.xrefs.FindByOriginal(ctx, res.Manufacturer, res.PartNumber, limit)
	if err != nil {
		metrics.RecordResolution(caller, metrics.ResultError)
		return nil, fmt.Errorf("find cross references for %s: %w", partNumber, err)
	}
	res.Matches = matches
	if len(matches) > 0 {
		metrics.RecordResolution(caller, metrics.ResultEquivalent)
	} else {
		metrics.RecordResolution(caller, metrics.ResultNone)
	}
	return res, nil
}

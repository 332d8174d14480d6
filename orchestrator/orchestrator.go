package orchestrator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/michalshavit1/salto/deploy"
	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
	"github.com/michalshavit1/salto/fetch"
	"github.com/michalshavit1/salto/metrics"
	"github.com/michalshavit1/salto/resolve"
	"github.com/michalshavit1/salto/schema"
	"github.com/michalshavit1/salto/service"
)

// Orchestrator wires the pipeline end to end: paginate, shape-check, map,
// synthesize order elements, index, resolve, and on the way back deploy.
type Orchestrator struct {
	adapter     string
	registry    *schema.Registry
	client      service.Client
	mapper      *fetch.Mapper
	resolver    *resolve.Resolver
	coordinator *deploy.Coordinator
	metrics     *metrics.Metrics
	log         logr.Logger
}

type Options struct {
	Adapter     string
	Registry    *schema.Registry
	Client      service.Client
	Resolver    *resolve.Resolver
	Coordinator *deploy.Coordinator
	Metrics     *metrics.Metrics
	Log         logr.Logger
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		adapter:     opts.Adapter,
		registry:    opts.Registry,
		client:      opts.Client,
		mapper:      fetch.NewMapper(opts.Registry, opts.Adapter, opts.Log),
		resolver:    opts.Resolver,
		coordinator: opts.Coordinator,
		metrics:     opts.Metrics,
		log:         opts.Log,
	}
}

// FetchResult is the resolved element universe of one fetch invocation.
// Warnings carry per-kind degradations that did not stop the fetch.
type FetchResult struct {
	Elements []*element.Element
	Index    *resolve.Index
	Warnings []string
}

// Fetch lists the requested kinds (all listable kinds when none are named),
// maps every page, and resolves references across the combined universe. A
// kind whose pages fail the shape check degrades to an empty result with a
// warning; transport failures abort the fetch.
func (o *Orchestrator) Fetch(ctx context.Context, kinds ...string) (*FetchResult, error) {
	if err := o.registry.CheckAPIVersion(o.client.APIVersion(ctx)); err != nil {
		return nil, err
	}

	explicit := len(kinds) > 0
	if !explicit {
		kinds = o.registry.Kinds()
	}

	result := &FetchResult{}
	for _, kind := range kinds {
		rs, err := o.registry.Lookup(kind)
		if err != nil {
			return nil, err
		}
		if rs.List == nil {
			if explicit {
				return nil, faults.NewTypedError(faults.ConfigurationError,
					fmt.Sprintf("kind %q has no listing endpoint", kind), nil)
			}
			// Standalone children arrive through their parents.
			continue
		}

		members, warning, err := o.fetchKind(ctx, rs)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Elements = append(result.Elements, members...)
		o.metrics.AddElementsFetched(kind, len(members))

		if rs.Order != nil {
			sameKind := filterKind(members, kind)
			if order := fetch.SynthesizeOrder(o.adapter, rs, sameKind); order != nil {
				result.Elements = append(result.Elements, order)
			}
		}
	}

	result.Index = resolve.BuildIndex(result.Elements, o.log)
	stats := o.resolver.Resolve(result.Elements, result.Index)
	o.metrics.AddResolvedReferences(stats.Resolved)
	o.metrics.AddUnresolvedReferences(stats.Unresolved)

	o.log.Info("fetch finished",
		"kinds", len(kinds), "elements", len(result.Elements),
		"resolved", stats.Resolved, "unresolved", stats.Unresolved,
		"warnings", len(result.Warnings))
	return result, nil
}

func (o *Orchestrator) fetchKind(ctx context.Context, rs *schema.ResourceSchema) ([]*element.Element, string, error) {
	var members []*element.Element
	pager := o.client.Paginate(rs.Kind, rs.List)
	for {
		page, ok, err := pager.Next(ctx)
		if err != nil {
			return nil, "", faults.NewTypedError(faults.TransportError,
				fmt.Sprintf("listing kind %q failed", rs.Kind), err)
		}
		if !ok {
			break
		}
		o.metrics.IncPagesFetched(rs.Kind)

		if err := schema.ValidateListPage(rs, page); err != nil {
			o.log.Info("malformed listing page, dropping kind from this fetch",
				"kind", rs.Kind, "error", err.Error())
			o.metrics.IncFetchFailures(rs.Kind)
			return nil, fmt.Sprintf("kind %q dropped: %s", rs.Kind, err.Error()), nil
		}
		mapped, err := o.mapper.Map(rs.Kind, page)
		if err != nil {
			o.log.Info("unmappable listing page, dropping kind from this fetch",
				"kind", rs.Kind, "error", err.Error())
			o.metrics.IncFetchFailures(rs.Kind)
			return nil, fmt.Sprintf("kind %q dropped: %s", rs.Kind, err.Error()), nil
		}
		members = append(members, mapped...)
	}
	return members, "", nil
}

// OnFetch resolves references over an externally assembled element set, in
// place. Used when elements come from a workspace instead of the service.
func (o *Orchestrator) OnFetch(elems []*element.Element) *resolve.Index {
	idx := resolve.BuildIndex(elems, o.log)
	o.resolver.Resolve(elems, idx)
	return idx
}

// Deploy applies a change batch after the API version gate.
func (o *Orchestrator) Deploy(ctx context.Context, changes []deploy.Change) (*deploy.Result, error) {
	if err := o.registry.CheckAPIVersion(o.client.APIVersion(ctx)); err != nil {
		return nil, err
	}
	return o.coordinator.Deploy(ctx, changes), nil
}

func filterKind(elems []*element.Element, kind string) []*element.Element {
	var out []*element.Element
	for _, e := range elems {
		if e != nil && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
	"github.com/michalshavit1/salto/metrics"
	"github.com/michalshavit1/salto/schema"
)

const defaultConcurrency = 4

// FailedChange pairs a change with the error that stopped it.
type FailedChange struct {
	Change Change
	Err    *faults.DeployError
}

// Result partitions one deploy invocation. Every input change lands in
// exactly one of the three buckets.
type Result struct {
	InvocationID string
	Applied      []Change
	Leftover     []Change
	Failed       []FailedChange
}

func (r *Result) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Applied) + len(r.Leftover) + len(r.Failed)
}

// Coordinator drives a batch of changes through the deploy mappers. Regular
// changes deploy independently and concurrently; ordered-collection changes
// are grouped per kind and handed to the order deployer as one batch.
type Coordinator struct {
	registry *schema.Registry
	mapper   *Mapper
	order    *OrderDeployer
	limit    int
	metrics  *metrics.Metrics
	log      logr.Logger
}

func NewCoordinator(registry *schema.Registry, mapper *Mapper, order *OrderDeployer, limit int, m *metrics.Metrics, log logr.Logger) *Coordinator {
	if limit <= 0 {
		limit = defaultConcurrency
	}
	return &Coordinator{
		registry: registry,
		mapper:   mapper,
		order:    order,
		limit:    limit,
		metrics:  m,
		log:      log,
	}
}

// Deploy partitions and applies the batch. One change's failure never stops
// its siblings; cancellation is advisory and only prevents dispatch of
// changes not yet started.
func (c *Coordinator) Deploy(ctx context.Context, changes []Change) *Result {
	result := &Result{InvocationID: uuid.NewString()}
	log := c.log.WithValues("invocation", result.InvocationID)
	log.Info("deploying change batch", "changes", len(changes))

	var regular []int
	orderBatches := make(map[string][]int)
	for i, change := range changes {
		state := change.Element()
		if state == nil {
			c.fail(result, change, faults.NewDeployError("", faults.SeverityError,
				fmt.Sprintf("%s change carries no element state", change.Action), nil))
			continue
		}
		if _, ok := c.registry.LookupOrder(state.Kind); ok {
			orderBatches[state.Kind] = append(orderBatches[state.Kind], i)
			continue
		}
		applicable, err := c.classify(change, state)
		switch {
		case err != nil:
			c.fail(result, change, c.deployError(change, err))
		case applicable:
			regular = append(regular, i)
		default:
			result.Leftover = append(result.Leftover, change)
			c.metrics.IncChangesLeftover()
		}
	}

	errs := make([]*faults.DeployError, len(changes))
	group := new(errgroup.Group)
	group.SetLimit(c.limit)
	for _, i := range regular {
		if ctx.Err() != nil {
			errs[i] = faults.NewDeployError(string(changes[i].ElementID()), faults.SeverityError,
				"cancelled before dispatch", ctx.Err())
			continue
		}
		change := changes[i]
		idx := i
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[idx] = faults.NewDeployError(string(change.ElementID()), faults.SeverityError,
					"cancelled before dispatch", err)
				return nil
			}
			if err := c.mapper.Deploy(ctx, change); err != nil {
				errs[idx] = c.deployError(change, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	for _, i := range regular {
		if errs[i] != nil {
			c.fail(result, changes[i], errs[i])
			continue
		}
		result.Applied = append(result.Applied, changes[i])
		c.metrics.IncChangesApplied(changes[i].Kind())
		c.metrics.IncRequestsIssued()
	}

	for _, orderKind := range sortedKeys(orderBatches) {
		batch := make([]Change, 0, len(orderBatches[orderKind]))
		for _, i := range orderBatches[orderKind] {
			batch = append(batch, changes[i])
		}
		applied, batchErrs := c.order.Deploy(ctx, orderKind, batch)
		result.Applied = append(result.Applied, applied...)
		for range applied {
			c.metrics.IncChangesApplied(orderKind)
		}
		if len(applied) > 0 {
			c.metrics.IncRequestsIssued()
		}
		for j, err := range batchErrs {
			c.fail(result, batch[j], err)
		}
	}

	log.Info("deploy batch finished",
		"applied", len(result.Applied), "leftover", len(result.Leftover), "failed", len(result.Failed))
	return result
}

// classify decides whether a change is deployable here: the kind must carry a
// template for the operation, and the template's guard (if any) must accept
// the change. Guard rejection is not an error; the change passes through.
func (c *Coordinator) classify(change Change, state *element.Element) (bool, error) {
	rs, err := c.registry.Lookup(state.Kind)
	if err != nil {
		c.log.V(1).Info("no schema for changed kind, passing through",
			"element", state.ID, "kind", state.Kind)
		return false, nil
	}
	tmpl := rs.Deploy[change.Operation()]
	if tmpl == nil {
		c.log.V(1).Info("no deploy template for operation, passing through",
			"element", state.ID, "operation", change.Operation())
		return false, nil
	}
	program := tmpl.GuardProgram()
	if program == nil {
		return true, nil
	}
	verdict, err := expr.Run(program, map[string]any{
		"action": string(change.Action),
		"kind":   state.Kind,
		"values": guardValues(state.Values),
	})
	if err != nil {
		return false, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("guard for kind %q failed to evaluate", state.Kind), err)
	}
	accepted, _ := verdict.(bool)
	return accepted, nil
}

func (c *Coordinator) fail(result *Result, change Change, err *faults.DeployError) {
	c.log.Error(err, "change failed", "element", change.ElementID(), "action", change.Action)
	result.Failed = append(result.Failed, FailedChange{Change: change, Err: err})
	c.metrics.IncChangesFailed(change.Kind())
}

func (c *Coordinator) deployError(change Change, err error) *faults.DeployError {
	var deployErr *faults.DeployError
	if errors.As(err, &deployErr) {
		return deployErr
	}
	return faults.NewDeployError(string(change.ElementID()), faults.SeverityError, "", err)
}

// guardValues copies the values into guard-friendly shapes: references become
// their natural names and json numbers become float64.
func guardValues(values map[string]any) map[string]any {
	out := element.DeepCopy(values).(map[string]any)
	convertGuardValue(out)
	return out
}

func convertGuardValue(value any) any {
	switch t := value.(type) {
	case map[string]any:
		for key, item := range t {
			t[key] = convertGuardValue(item)
		}
		return t
	case []any:
		for i := range t {
			t[i] = convertGuardValue(t[i])
		}
		return t
	case *element.Reference:
		if target := t.Elem(); target != nil {
			return target.NaturalKey
		}
		return t.Target.LastSegment()
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return value
	}
}

func sortedKeys(batches map[string][]int) []string {
	keys := make([]string, 0, len(batches))
	for key := range batches {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/michalshavit1/salto/deploy"
	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
)

type planDocument struct {
	Changes []planChange `yaml:"changes"`
}

type planChange struct {
	Action string         `yaml:"action"`
	Kind   string         `yaml:"kind"`
	Before map[string]any `yaml:"before,omitempty"`
	After  map[string]any `yaml:"after,omitempty"`
}

func newDeployCommand() *cobra.Command {
	var planPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Apply a change plan to the service",
		Long: `Deploy reads a change plan, maps each change onto its kind's deploy
template, and applies the batch. Changes the engine cannot apply pass through
as leftovers; one change's failure never stops its siblings.

A plan is a yaml document listing changes with pre- and post-change values:

  changes:
    - action: add
      kind: automation
      after:
        title: Close stale tickets
        active: true`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			changes, err := loadPlan(rt, planPath)
			if err != nil {
				return err
			}

			if dryRun {
				return printPlan(cmd, rt, changes)
			}

			result, err := rt.orchestrator.Deploy(cmd.Context(), changes)
			if err != nil {
				return err
			}
			cmd.Printf("invocation %s: applied %d, leftover %d, failed %d\n",
				result.InvocationID, len(result.Applied), len(result.Leftover), len(result.Failed))
			for _, failed := range result.Failed {
				cmd.PrintErrln("failed:", failed.Err.Error())
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d changes failed", len(result.Failed), result.Size())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Path to the change plan file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render the wire requests without issuing them")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

// loadPlan maps every planned state into elements and resolves references
// across the plan's combined universe before pairing states into changes.
func loadPlan(rt *runtime, path string) ([]deploy.Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("cannot read plan file %q", path), err)
	}
	var doc planDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("cannot parse plan file %q", path), err)
	}

	var universe []*element.Element
	mapState := func(kind string, values map[string]any) (*element.Element, error) {
		if values == nil {
			return nil, nil
		}
		elems, err := rt.fetchMapper.MapItem(kind, values)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("plan entry of kind %q has no identifier", kind), nil)
		}
		universe = append(universe, elems...)
		return elems[0], nil
	}

	changes := make([]deploy.Change, 0, len(doc.Changes))
	for i, entry := range doc.Changes {
		before, err := mapState(entry.Kind, entry.Before)
		if err != nil {
			return nil, err
		}
		after, err := mapState(entry.Kind, entry.After)
		if err != nil {
			return nil, err
		}

		switch deploy.Action(entry.Action) {
		case deploy.ActionAdd:
			if after == nil {
				return nil, planError(i, "an addition needs an after state")
			}
			changes = append(changes, deploy.Addition(after))
		case deploy.ActionModify:
			if before == nil || after == nil {
				return nil, planError(i, "a modification needs both states")
			}
			changes = append(changes, deploy.Modification(before, after))
		case deploy.ActionRemove:
			if before == nil {
				return nil, planError(i, "a removal needs a before state")
			}
			changes = append(changes, deploy.Removal(before))
		default:
			return nil, planError(i, fmt.Sprintf("unknown action %q", entry.Action))
		}
	}

	rt.orchestrator.OnFetch(universe)
	return changes, nil
}

func planError(index int, message string) error {
	return faults.NewTypedError(faults.ConfigurationError,
		fmt.Sprintf("plan entry %d: %s", index, message), nil)
}

func printPlan(cmd *cobra.Command, rt *runtime, changes []deploy.Change) error {
	for _, change := range changes {
		req, err := rt.mapper.Render(change)
		if err != nil {
			cmd.Printf("%s %s: not renderable here: %v\n", change.Action, change.ElementID(), err)
			continue
		}
		body, err := json.MarshalIndent(req.Body, "", "  ")
		if err != nil {
			return err
		}
		cmd.Printf("%s %s\n%s\n", req.Method, req.URL, body)
	}
	return nil
}

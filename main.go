package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relsolve/rel2cp/cp"
	"github.com/relsolve/rel2cp/ir"
	"github.com/relsolve/rel2cp/lower"
)

var (
	fWorkers   int
	fDeadline  time.Duration
	fProbing   int
	fLogSearch bool
	fEncoding  string
	fSymmetry  string
)

func oops(stage string, err error) {
	fmt.Fprintf(os.Stderr, "ERROR [%s]]] %s\n", stage, err)
	os.Exit(-1)
}

// ----------------------------------------------------------------------------
// scenario file

type scenarioTask struct {
	Name    string           `yaml:"name"`
	Demands map[string]int64 `yaml:"demands"`
}

type scenarioNode struct {
	Name       string           `yaml:"name"`
	Capacities map[string]int64 `yaml:"capacities"`
}

type scenario struct {
	Tasks     []scenarioTask      `yaml:"tasks"`
	Nodes     []scenarioNode      `yaml:"nodes"`
	Objective string              `yaml:"objective"` // resource whose peak is minimized
	Pinned    map[string]string   `yaml:"pinned"`    // task -> node
	Forbidden map[string][]string `yaml:"forbidden"` // task -> nodes
}

func (self *scenario) resources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range self.Tasks {
		for r := range t.Demands {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (self *scenario) taskIndex(name string) int {
	for i, t := range self.Tasks {
		if t.Name == name {
			return i
		}
	}
	return -1
}

func (self *scenario) nodeIndex(name string) int {
	for i, n := range self.Nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

// buildComprehension turns the scenario into IR tables plus the placement
// comprehension: one generator over tasks, a capacity aggregate per shared
// resource dimension, pin/forbid membership predicates and optionally a
// minimize-peak objective.
func buildComprehension(s *scenario) (*ir.Comprehension, error) {
	resources := s.resources()

	nodeCols := []*ir.Column{ir.NewColumn("id", ir.ColumnInt)}
	for _, r := range resources {
		nodeCols = append(nodeCols, ir.NewColumn("cap_"+r, ir.ColumnInt))
	}
	nodeRows := make([][]int64, len(s.Nodes))
	for i, n := range s.Nodes {
		row := []int64{int64(i)}
		for _, r := range resources {
			c, ok := n.Capacities[r]
			if !ok {
				return nil, fmt.Errorf("node %s misses capacity for %s", n.Name, r)
			}
			row = append(row, c)
		}
		nodeRows[i] = row
	}
	nodes, err := ir.NewTable("nodes", nodeCols, []string{"id"}, nodeRows)
	if err != nil {
		return nil, err
	}

	taskCols := []*ir.Column{
		ir.NewColumn("id", ir.ColumnInt),
		ir.NewForeignKeyColumn("node", nodes),
	}
	for _, r := range resources {
		taskCols = append(taskCols, ir.NewColumn("dem_"+r, ir.ColumnInt))
	}
	taskRows := make([][]int64, len(s.Tasks))
	for i, t := range s.Tasks {
		row := []int64{int64(i), 0}
		for _, r := range resources {
			row = append(row, t.Demands[r])
		}
		taskRows[i] = row
	}
	tasks, err := ir.NewTable("tasks", taskCols, []string{"id"}, taskRows)
	if err != nil {
		return nil, err
	}

	gen, err := ir.NewTableRowGenerator(tasks, tasks.Column("node"))
	if err != nil {
		return nil, err
	}

	var quals []ir.Qualifier
	quals = append(quals, gen)

	for taskName, nodeName := range s.Pinned {
		ti, ni := s.taskIndex(taskName), s.nodeIndex(nodeName)
		if ti < 0 || ni < 0 {
			return nil, fmt.Errorf("pinned: unknown task or node %s -> %s", taskName, nodeName)
		}
		p, err := ir.NewMembershipPredicate(gen, ti, ir.CmpEq, ni)
		if err != nil {
			return nil, err
		}
		quals = append(quals, p)
	}
	for taskName, nodeNames := range s.Forbidden {
		ti := s.taskIndex(taskName)
		if ti < 0 {
			return nil, fmt.Errorf("forbidden: unknown task %s", taskName)
		}
		for _, nodeName := range nodeNames {
			ni := s.nodeIndex(nodeName)
			if ni < 0 {
				return nil, fmt.Errorf("forbidden: unknown node %s", nodeName)
			}
			p, err := ir.NewMembershipPredicate(gen, ti, ir.CmpNe, ni)
			if err != nil {
				return nil, err
			}
			quals = append(quals, p)
		}
	}

	for _, r := range resources {
		agg, err := ir.NewCapacityAggregate(
			ir.AggSum,
			gen,
			tasks.Column("dem_"+r),
			nodes.Column("cap_"+r),
		)
		if err != nil {
			return nil, err
		}
		quals = append(quals, agg)
	}

	if s.Objective != "" {
		c := tasks.Column("dem_" + s.Objective)
		if c == nil {
			return nil, fmt.Errorf("objective resource %s is not a task demand", s.Objective)
		}
		agg, err := ir.NewObjectiveAggregate(ir.AggSum, gen, c)
		if err != nil {
			return nil, err
		}
		quals = append(quals, agg)
	}

	head, err := ir.NewHead(gen)
	if err != nil {
		return nil, err
	}
	quals = append(quals, head)

	return ir.NewComprehension(quals...)
}

// ----------------------------------------------------------------------------
// command

func parseEncoding(s string) (int, error) {
	switch s {
	case "auto":
		return lower.EncodingAuto, nil
	case "interval":
		return lower.EncodingInterval, nil
	case "indicator":
		return lower.EncodingIndicator, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

func parseSymmetry(s string) (int, error) {
	switch s {
	case "auto":
		return lower.SymmetryAuto, nil
	case "on":
		return lower.SymmetryOn, nil
	case "off":
		return lower.SymmetryOff, nil
	default:
		return 0, fmt.Errorf("unknown symmetry mode %q", s)
	}
}

func statusColor(st cp.Status) *color.Color {
	switch st {
	case cp.Optimal, cp.Feasible:
		return color.New(color.FgGreen, color.Bold)
	case cp.Infeasible:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

func run(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		oops("read-scenario", err)
	}
	s := &scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		oops("parse-scenario", err)
	}

	comp, err := buildComprehension(s)
	if err != nil {
		oops("build-ir", err)
	}

	encoding, err := parseEncoding(fEncoding)
	if err != nil {
		oops("flags", err)
	}
	symmetry, err := parseSymmetry(fSymmetry)
	if err != nil {
		oops("flags", err)
	}

	prog, err := lower.Compile(comp, lower.Options{
		Encoding: encoding,
		Symmetry: symmetry,
	})
	if err != nil {
		oops("compile", err)
	}

	ctx := context.Background()
	if fDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fDeadline)
		defer cancel()
	}

	solver := &cp.Solver{
		Workers:           fWorkers,
		LogSearchProgress: fLogSearch,
		ProbingLevel:      fProbing,
		Logger:            logrus.StandardLogger(),
	}
	res, err := prog.Solve(ctx, solver)
	if err != nil {
		oops("solve", err)
	}

	statusColor(res.Status()).Printf("%s", res.Status().String())
	fmt.Printf("  encoding=%s branches=%d wall=%s\n",
		prog.EncodingName(),
		res.Branches(),
		res.WallTime(),
	)

	switch res.Status() {
	case cp.Infeasible:
		fmt.Println("no placement satisfies the declared policy against current state")
		os.Exit(1)
	case cp.Unknown:
		fmt.Println("solve budget exhausted without a usable placement")
		os.Exit(1)
	}

	placement, err := lower.Project(prog, res)
	if err != nil {
		oops("project", err)
	}

	if placement.HasObjective {
		fmt.Printf("objective (peak %s): %d\n", s.Objective, placement.Objective)
	}
	bold := color.New(color.Bold)
	for _, a := range placement.Assignments {
		bold.Printf("%-24s", s.Tasks[a.Row].Name)
		fmt.Printf(" -> %s\n", s.Nodes[a.Target].Name)
	}
}

func main() {
	root := &cobra.Command{
		Use:   "rel2cp <scenario.yaml>",
		Short: "compile a declarative placement policy and solve it",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}
	root.Flags().IntVar(&fWorkers, "workers", 4, "parallel search workers")
	root.Flags().DurationVar(&fDeadline, "deadline", 0, "wall clock solve budget, 0 means none")
	root.Flags().IntVar(&fProbing, "probing", 0, "constraint probing level (0-2)")
	root.Flags().BoolVar(&fLogSearch, "log-search", false, "log search progress")
	root.Flags().StringVar(&fEncoding, "encoding", "auto", "capacity encoding: auto, interval, indicator")
	root.Flags().StringVar(&fSymmetry, "symmetry", "auto", "symmetry breaking: auto, on, off")

	if err := root.Execute(); err != nil {
		os.Exit(-1)
	}
}

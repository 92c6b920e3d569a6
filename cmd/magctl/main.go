// Command magctl is the control-plane CLI around the magdata package.
// Its bench subcommand mirrors the manual disruption-tuning tool the
// original implementation shipped as maglevdyn-test's "test" command:
// build a region, activate a pool of targets, add or remove one, and
// report the measured disruption percentage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nordix/magtable/magdata"
)

var (
	benchM      uint32
	benchN      uint32
	benchActive uint32
	benchChurn  uint32
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "magctl",
		Short: "Control plane tooling for a shared-memory Maglev lookup table",
	}
	root.AddCommand(benchCmd())
	return root
}

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure lookup-table disruption when targets are added or removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd)
		},
	}
	cmd.Flags().Uint32Var(&benchM, "M", 997, "Maglev lookup table size bound")
	cmd.Flags().Uint32Var(&benchN, "N", 32, "Maglev max targets")
	cmd.Flags().Uint32Var(&benchActive, "active", 10, "Active targets before churn")
	cmd.Flags().Uint32Var(&benchChurn, "D", 1, "Targets to add/remove")
	return cmd
}

func runBench(cmd *cobra.Command) error {
	need, err := magdata.Len(benchM, benchN)
	if err != nil {
		return err
	}
	v, err := magdata.Init(benchM, benchN, make([]byte, need))
	if err != nil {
		return err
	}

	if benchActive > v.N() {
		return fmt.Errorf("active (%d) exceeds N (%d)", benchActive, v.N())
	}
	for j := uint32(0); j < benchActive; j++ {
		v.Active()[j] = int32(j)
	}
	v.Populate()

	addPct := churn(v, benchActive, benchActive+benchChurn, true)
	cmd.Printf("add %d targets;    %.1f%%\n", benchChurn, addPct)

	remPct := churn(v, benchActive, benchActive-benchChurn, false)
	cmd.Printf("remove %d targets; %.1f%%\n", benchChurn, remPct)
	return nil
}

// churn activates slots [from, to) (grow=true) or deactivates slots
// [to, from) (grow=false), and returns the percent of lookup[] entries
// that changed.
func churn(v *magdata.View, from, to uint32, grow bool) float64 {
	before := make([]int32, v.M())
	for i := range before {
		before[i] = v.Lookup(uint32(i))
	}

	if grow {
		for j := from; j < to; j++ {
			v.Active()[j] = int32(j)
		}
	} else {
		for j := to; j < from; j++ {
			v.Active()[j] = -1
		}
	}
	v.Populate()

	diff := 0
	for i := range before {
		if before[i] != v.Lookup(uint32(i)) {
			diff++
		}
	}
	return 100.0 * float64(diff) / float64(len(before))
}

// Package simulation provides a multi-step test harness for validating the
// emergent dynamics of gossip epidemics.
//
// The harness exercises the real Engine, Driver, TraceRecorder and
// SQLiteTraceStore. No mocks. Scenarios describe a topology, parameters and
// initial infections; the Runner steps them to completion while capturing
// every node's state after each step, so property assertions can check the
// whole trajectory rather than only the end state.
//
// Each test gets an isolated SQLite trace database via t.TempDir().
//
// Usage:
//
//	func TestFullSpread(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:       "full-spread",
//	        Nodes:      40,
//	        Seed:       3,
//	        Parameters: simulation.Flood(),
//	        MaxSteps:   200,
//	    })
//	    simulation.AssertMonotoneStates(t, result)
//	    simulation.AssertReachFraction(t, result, 1.0)
//	}
package simulation

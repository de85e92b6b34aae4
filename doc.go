// Package tripwire decides what an interception proxy does with a flow,
// using a rule file evaluated incrementally as facts about the flow arrive.
//
// Typical use is as follows:
//
//  1. Create an Engine
//  2. Load a rule file with LoadFile, or compile a parsed one with Compile
//  3. For every flow, call NewFlow
//  4. Feed the facts of the flow as they become known: SetDirection,
//     SetDestination, SetServerName, SetRequest, ...
//  5. After each fact, inspect Result and act on the effects that fired
//
// # Incremental evaluation
//
// The rule file is compiled into one expression graph. Identical filters
// written in different rules share a single variable, so each is evaluated
// once per flow. Feeding a fact only touches the expressions that depend on
// it, and an expression that became true or false never changes again for
// that flow. A verdict is therefore available the moment the facts seen so
// far settle it: a rule on port and server name can reject a flow on the
// port alone.
//
// A fact that never arrives leaves the expressions depending on it
// undecided. The caller decides how long to wait; a Flow holds no resources
// and needs no teardown.
//
// # Reloading Rules
//
// Compilation builds a new generation of the graph and publishes it, with
// its inputs and effects, as one Ruleset. A flow keeps the Ruleset that was
// current when it was created for its whole life, so a reload never affects
// flows in progress. A rule file that fails to compile leaves the previous
// Ruleset in force. Watch reloads a rule file whenever it changes.
package tripwire

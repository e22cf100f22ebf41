package combinator

import "github.com/dshills/taskflow-go/taskengine"

// SubWorkflow builds the Engine to delegate to, given the parent calling it.
// Called once per RUN_WF callback unless reinit is false and a cached
// instance already exists in the parent's ExtraData.
type SubWorkflow func(parent *taskengine.Engine) *taskengine.Engine

// RUN_WF delegates a single token to a sub-engine built by build, ported
// from the original's RUN_WF combinator:
//
//   - passEng: the sub-engine always runs the same token in its own
//     MachineState; if passEng is true, a successful run also stores the
//     sub-engine in parent.ExtraData["run_wf.last_sub_engine"].
//   - outkey: when non-empty, the sub-engine's CurrentObject result (the
//     token, post-run) is stashed into parent.ExtraData[outkey] for
//     downstream callbacks to read, letting RUN_WF outputs feed later
//     combinators without a shared token type.
//   - reinit: when false, build runs only once per parent engine and the
//     resulting sub-engine is cached in parent.ExtraData under cacheKey
//     ("run_wf.default" when empty), so repeated visits to this callback
//     (e.g. inside a WHILE body) reuse the same sub-engine instance and its
//     accumulated State; when true, a fresh sub-engine is built on every
//     visit and the cache is neither read nor written.
//
// No ExtraData entries are copied from the parent into the sub-engine.
//
// A WorkflowError or HaltError surfaced by the sub-engine's Process call
// propagates out of RUN_WF as the parent's own WorkflowError, since the
// parent has no narrower way to report a nested engine's failure.
func RUN_WF(build SubWorkflow, passEng bool, outkey string, reinit bool, cacheKey string) taskengine.Callback {
	return func(tok taskengine.Token, eng *taskengine.Engine) {
		sub := resolveSubEngine(eng, build, reinit, cacheKey)

		runTok := tok
		tokens := []taskengine.Token{runTok}
		if err := sub.Process(tokens); err != nil {
			eng.RaiseWorkflowError("RUN_WF sub-workflow failed: "+err.Error(), err)
			return
		}

		if passEng {
			eng.ExtraData["run_wf.last_sub_engine"] = sub
		}
		if outkey != "" {
			eng.ExtraData[outkey] = sub.CurrentObject()
		}
	}
}

func resolveSubEngine(eng *taskengine.Engine, build SubWorkflow, reinit bool, cacheKey string) *taskengine.Engine {
	if cacheKey == "" {
		cacheKey = "run_wf.default"
	}
	if !reinit {
		if cached, ok := eng.ExtraData[cacheKey].(*taskengine.Engine); ok {
			return cached
		}
	}
	sub := build(eng)
	if !reinit {
		eng.ExtraData[cacheKey] = sub
	}
	return sub
}

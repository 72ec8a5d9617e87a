// Package task defines the closed set of task types a worker can run, the
// handler contract and the registry that dispatches on task type.
//
// A handler receives decoded params and an [Env] and returns a [Result] or
// an error. Handlers never write jobs themselves: follow-up work is
// returned as [ChildSpec] values and inserted by the scheduler with the
// parent's id and batch.
//
// Handlers are registered through the generic [Register] function, which
// closes over JSON decoding of the job params:
//
//	task.Register(reg, task.NewDefinition(task.ScrapeRoster, true,
//	    func(ctx context.Context, env *task.Env, p RosterParams) (*task.Result, error) {
//	        ...
//	    }))
package task

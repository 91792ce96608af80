/*
Package playbook is a guided-workflow engine: it recognizes which protocol a user's
input calls for, then walks the caller through that protocol's steps one at a time.

A protocol is a named, ordered list of steps. Each step carries a command template the
caller runs out-of-band (Playbook never executes anything) and an optional condition
that decides whether the step applies. The engine tracks progress per execution and
persists the active set, so work survives restarts.

# Concept

Playbook follows a hexagonal layout. The core (pkg/domain, internal/runtime) holds the
state machine; stores (file, memory, redis, sqlite), catalog sources (built-in, YAML,
Loam) and transports (MCP, HTTP, CLI) plug in through pkg/ports.

# Usage

	ctx := context.Background()
	eng, err := playbook.New(ctx,
		playbook.WithStore(file.New(".playbook/data", nil)),
		playbook.WithDefaultContext(domain.Context{"code_root": domain.StringValue("/src")}),
	)
	if err != nil {
		log.Fatal(err)
	}

	matches := eng.Detect(ctx, "update repo", nil)
	exec, _ := eng.Start(ctx, matches[0].ID, nil)

	for {
		action, err := eng.Next(ctx, exec.ID)
		if err != nil {
			log.Fatal(err)
		}
		if action.Type == domain.ActionComplete {
			fmt.Println(action.Message)
			break
		}
		// Run action.Command, then report back.
		_ = eng.CompleteStep(ctx, exec.ID, action.Step.ID, "ok")
	}
*/
package playbook

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/runner"
)

// Run reads one input per line from stdin until EOF, "exit" or "quit".
func (c *ChatCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		cctx, cancel := shutdownContext(cfg)
		defer cancel()
		_ = a.close(cctx)
	}()

	base := core.NewAgentContext(c.User, c.Group)
	base.ProjectID = c.Project
	base.SceneID = c.Scene
	base.CreditsRemaining = c.credits(ctx, a)

	var runnerOpts []func(o *runner.Options)

	if c.Agent != "" {
		t, err := core.ParseAgentType(c.Agent)
		if err != nil {
			return err
		}

		runnerOpts = append(runnerOpts, func(o *runner.Options) { o.StartAgent = t })
	}

	r := a.system.NewRunner(base, runnerOpts...)
	if a.bus != nil {
		a.bus.Attach(r)
	}

	fmt.Fprintf(os.Stderr, "Conversation %s with %s (credits: %d). Type \"exit\" to leave.\n",
		r.GroupID(), r.CurrentAgent(), base.CreditsRemaining)

	return chatLoop(ctx, r, os.Stdin, os.Stdout)
}

// credits resolves the balance: flag, then credit store, then config default.
func (c *ChatCmd) credits(ctx context.Context, a *app) int {
	if c.Credits >= 0 {
		return c.Credits
	}

	if cs := a.system.Credits(); cs != nil {
		if bal, err := cs.Balance(ctx, c.User); err == nil && bal > 0 {
			return bal
		}
	}

	return a.cfg.Runner.DefaultCredits
}

// chatLoop feeds lines from in to r and prints each answer to out.
func chatLoop(ctx context.Context, r core.Runner, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res := r.ProcessInput(ctx, line)
		printResult(out, res)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func printResult(out io.Writer, res core.AgentResult) {
	fmt.Fprintf(out, "[%s] %s\n", res.AgentType, res.Response)

	if res.HasHandoff() {
		fmt.Fprintf(out, "  (suggested next: %s", res.NextAgent)
		if res.HandoffReason != "" {
			fmt.Fprintf(out, ", %s", res.HandoffReason)
		}
		fmt.Fprintln(out, ")")
	}

	if saveErr, ok := res.StructuredOutput["saveError"]; ok {
		fmt.Fprintf(out, "  (not saved: %v)\n", saveErr)
	}
}

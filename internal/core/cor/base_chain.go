// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor (Chain of Responsibility) provides the fundamental building
// blocks for creating workflows. This file defines BaseChain, the default
// implementation of the Chain interface.
//
// A BaseChain executes its commands in order under a shared Context. After
// each command runs, the chain "flip-flops" the data keys: the value the
// command wrote to CtxOut becomes the CtxIn value for the next command,
// forming a processing pipeline. Execution stops at the first recorded error
// unless ContinueOnFailure(true) was set, and each command gets its own
// OpenTelemetry span nested under the chain's span.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface. It holds an
// ordered slice of commands executed sequentially.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // When true, later commands run even after an earlier one fails.
	commands          []Command // The ordered list of commands this chain executes.
}

// NewBaseChain creates a chain with the given name for logging and telemetry.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure sets the error-handling behavior of the chain and returns
// the chain for fluent construction.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends a command to the chain's execution sequence and returns
// the chain for fluent construction.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable reports whether the chain can run; a chain only requires a
// valid Go context.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs every command in order, piping each command's output into the
// next command's input and recording per-command trace spans.
//
// Inputs:
//   - chCtx: The shared cor.Context for the entire workflow execution.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	for _, command := range c.commands {
		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())

		// Honor cooperative cancellation between commands: a cancelled run
		// must never keep executing and publish partial results downstream.
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(c.GetName(), err)
			commandSpan.SetStatus(codes.Error, "workflow context cancelled")
			commandSpan.End()
			break
		}

		if chCtx.HasErrors() && !c.continueOnFailure {
			commandSpan.SetStatus(codes.Error, "previous error on chain; skipping execution")
			commandSpan.End()
			break
		}

		if command.IsExecutable(chCtx) {
			// Run the command under its own span's context, then restore the
			// chain context so sibling commands stay flat in the trace.
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if chCtx.HasErrors() {
			commandSpan.SetStatus(codes.Error, "error during or after command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		// Flip-flop: the output of the command that just ran becomes the
		// input of the next one.
		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}

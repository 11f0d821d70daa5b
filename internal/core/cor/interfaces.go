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
// blocks for creating workflows. This file defines the core interfaces that
// govern the behavior of all components within the pattern. By using
// interfaces, the framework stays flexible: commands, chains, and contexts
// can be swapped or nested freely.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the well-known keys used to manage the primary data
// flow within a BaseChain.
const (
	// CtxIn is the default key for the primary input of a command. The
	// BaseChain populates it with the output of the previous command.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the shared state object passed through a chain of commands for
// a single workflow execution. It carries data, errors, and the standard Go
// context between commands.
type Context interface {
	// SetContext sets the standard Go context.Context, used for cancellation
	// and for propagating OpenTelemetry trace information.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go context.Context.
	GetContext() context.Context

	// Add stores a key-value pair. It returns the Context so calls can be
	// chained fluently.
	Add(key string, value interface{}) Context

	// AddError records an error produced by a command. The key is typically
	// the command's name.
	AddError(key string, err error)

	// GetErrors returns all errors collected during the workflow.
	GetErrors() map[string]error

	// Get retrieves a value by key, or nil when absent.
	Get(key string) interface{}

	// Remove deletes a key-value pair.
	Remove(key string)

	// HasErrors reports whether any command has recorded an error.
	HasErrors() bool
}

// Executable is any object with a core execution behavior.
type Executable interface {
	// Execute runs the object's business logic, reading inputs from and
	// writing outputs to the supplied Context.
	Execute(context Context)
}

// Command is an atomic, testable, thread-safe unit of work. It is the
// fundamental building block of a workflow.
type Command interface {
	Executable

	// GetName returns the unique name of the command, used for logging and
	// telemetry.
	GetName() string

	// GetInputParam returns the context key the command reads its primary
	// input from.
	GetInputParam() string

	// GetOutputParam returns the context key the command writes its primary
	// output to.
	GetOutputParam() string

	// IsExecutable checks whether the command can run against the current
	// state of the Context. It is a precondition check before Execute.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer for this command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter for creating metrics.
	GetMeter() metric.Meter

	// GetSuccessCounter returns a metric counter for successful executions.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns a metric counter for failed executions.
	GetErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of commands. A Chain is itself a Command, so
// chains can be nested inside other chains (Composite pattern).
type Chain interface {
	Command

	// ContinueOnFailure configures whether the chain keeps executing after a
	// command records an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}

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

// Package cor_test contains the test suite for the chain-of-responsibility
// framework: output-to-input piping, short-circuit on error, the
// continue-on-failure override, and cooperative cancellation.
package cor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const tName = "github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor/tests"

var logger = otelslog.NewLogger(tName)

// appendCommand appends its suffix to the string flowing down the chain.
type appendCommand struct {
	cor.BaseCommand
	suffix string
	ran    bool
}

func newAppendCommand(name, suffix string) *appendCommand {
	return &appendCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix}
}

func (c *appendCommand) IsExecutable(context cor.Context) bool {
	return context.Get(c.GetInputParam()) != nil
}

func (c *appendCommand) Execute(context cor.Context) {
	c.ran = true
	in := context.Get(c.GetInputParam()).(string)
	logger.Debug("append command executing", "name", c.GetName(), "in", in)
	context.Add(c.GetOutputParam(), in+c.suffix)
}

// failingCommand records one error against its own name.
type failingCommand struct {
	cor.BaseCommand
}

func (c *failingCommand) Execute(context cor.Context) {
	context.AddError(c.GetName(), errors.New("injected failure"))
}

func newChainContext(in any) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	if in != nil {
		chainCtx.Add(cor.CtxIn, in)
	}
	return chainCtx
}

// TestChainPipesOutputs verifies the flip-flop: each command's output
// becomes the next command's input, and the final output is left under the
// well-known key.
func TestChainPipesOutputs(t *testing.T) {
	chain := cor.NewBaseChain("pipe-test")
	chain.AddCommand(newAppendCommand("first", "-a")).
		AddCommand(newAppendCommand("second", "-b"))

	chainCtx := newChainContext("seed")
	chain.Execute(chainCtx)

	require.False(t, chainCtx.HasErrors())
	assert.Equal(t, "seed-a-b", chainCtx.Get(cor.CtxIn))
	assert.Nil(t, chainCtx.Get(cor.CtxOut))
}

// TestChainStopsOnError verifies that an error short-circuits the rest of
// the chain by default.
func TestChainStopsOnError(t *testing.T) {
	tail := newAppendCommand("tail", "-never")
	chain := cor.NewBaseChain("halt-test")
	chain.AddCommand(&failingCommand{BaseCommand: *cor.NewBaseCommand("boom")}).
		AddCommand(tail)

	chainCtx := newChainContext("seed")
	chain.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.False(t, tail.ran)
	assert.Contains(t, chainCtx.GetErrors(), "boom")
}

// TestChainContinueOnFailure verifies the override used by cleanup-style
// chains: later commands still run after an earlier failure.
func TestChainContinueOnFailure(t *testing.T) {
	tail := newAppendCommand("tail", "-ran")
	chain := cor.NewBaseChain("continue-test")
	chain.ContinueOnFailure(true)
	chain.AddCommand(&failingCommand{BaseCommand: *cor.NewBaseCommand("boom")}).
		AddCommand(tail)

	chainCtx := newChainContext("seed")
	chain.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.True(t, tail.ran)
}

// TestChainSkipsUnexecutable verifies that a command whose input is missing
// is skipped without failing the chain, which is how premature trigger
// events are acknowledged.
func TestChainSkipsUnexecutable(t *testing.T) {
	tail := newAppendCommand("tail", "-skipped")
	chain := cor.NewBaseChain("skip-test")
	chain.AddCommand(tail)

	chainCtx := newChainContext(nil)
	chain.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.False(t, tail.ran)
}

// TestChainHonorsCancellation verifies that a cancelled workflow context
// stops the chain between commands and records the cancellation.
func TestChainHonorsCancellation(t *testing.T) {
	tail := newAppendCommand("tail", "-never")
	chain := cor.NewBaseChain("cancel-test")
	chain.AddCommand(tail)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, "seed")
	chain.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.False(t, tail.ran)
}

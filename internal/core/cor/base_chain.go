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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows. This file defines the `BaseChain`.
//
// Logic Flow:
//  1. A span is opened for the chain and a child span for every command.
//  2. Before each command the chain stops if an earlier command recorded an
//     error (unless ContinueOnFailure is set) or if the Go context has ended.
//  3. A command that is not executable is skipped and its span marked failed.
//  4. After each command its CtxOut value becomes CtxIn for the next one.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

// NewBaseChain is the constructor for BaseChain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure sets whether commands after a failure still run.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends command to the chain.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable only requires a Go context.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context.GetContext() != nil
}

// Execute runs the commands in order against chCtx.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()
	defer chCtx.SetContext(parentCtx)

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(c.GetName(), fmt.Errorf("chain stopped before %s: %w", command.GetName(), err))
			break
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		before := len(chCtx.GetErrors())

		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			commandSpan.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
		}

		if len(chCtx.GetErrors()) > before {
			commandSpan.SetStatus(codes.Error, "command recorded an error")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed")
		}
		commandSpan.End()

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

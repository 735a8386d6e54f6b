//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the boundary contracts between the evaluation core and
// the model-calling collaborators injected by the host.
package model

import "context"

// DefaultTemperature is the sampling temperature used when a caller does not
// specify one explicitly.
const DefaultTemperature = 0.7

// Func is the model-calling function injected into evaluators. Implementations
// send the prompt to a model and return its text response. The temperature is
// advisory; deterministic backends may ignore it. Implementations should return
// an error instead of panicking, evaluators fold per-item errors into placeholder
// results rather than aborting a run.
type Func func(ctx context.Context, prompt string, temperature float64) (string, error)

// Generator produces a single completion for a prompt. It is the minimal
// contract required by the LLM judge and variation generation.
type Generator interface {
	// Generate returns the model response for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// GeneratorFromFunc adapts a Func to a Generator using the default temperature.
func GeneratorFromFunc(fn Func) Generator {
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return fn(ctx, prompt, DefaultTemperature)
	})
}

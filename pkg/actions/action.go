// Package actions builds domain.Action values from plain functions and ships
// the built-in action catalog.
package actions

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/schema"
)

// Typed is an Action whose validated input is decoded into In.
type Typed[In, Out any] struct {
	name   string
	schema schema.Schema
	fn     func(context.Context, In) (Out, error)
}

// New builds a typed action. In is decoded from the validated payload using
// its json struct tags; unknown payload keys are ignored.
func New[In, Out any](name string, s schema.Schema, fn func(context.Context, In) (Out, error)) *Typed[In, Out] {
	return &Typed[In, Out]{name: name, schema: s, fn: fn}
}

func (a *Typed[In, Out]) Name() string          { return a.name }
func (a *Typed[In, Out]) Schema() schema.Schema { return a.schema }

// Execute implements domain.Action.
func (a *Typed[In, Out]) Execute(ctx context.Context, input map[string]any) (any, error) {
	var in In
	if err := decode(input, &in); err != nil {
		return nil, domain.InvalidPayload(a.name, "", err)
	}
	out, err := a.fn(ctx, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("failed to decode input: %w", err)
	}
	return nil
}

// Untyped is an Action over the raw validated input map.
type Untyped struct {
	name   string
	schema schema.Schema
	fn     func(context.Context, map[string]any) (any, error)
}

// Func builds an action from a function over the validated input map.
func Func(name string, s schema.Schema, fn func(context.Context, map[string]any) (any, error)) *Untyped {
	return &Untyped{name: name, schema: s, fn: fn}
}

func (a *Untyped) Name() string          { return a.name }
func (a *Untyped) Schema() schema.Schema { return a.schema }

// Execute implements domain.Action.
func (a *Untyped) Execute(ctx context.Context, input map[string]any) (any, error) {
	return a.fn(ctx, input)
}

var (
	_ domain.Action = (*Typed[struct{}, any])(nil)
	_ domain.Action = (*Untyped)(nil)
)

package chore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/registry"
	"github.com/artpar/restmodel/core/route"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
	"github.com/artpar/restmodel/ports"
)

// Resource name and extension method.
const (
	Name           = "chore"
	MethodComplete = "complete"
)

// Schema returns the sealed chore schema.
func Schema() *schema.Schema {
	s := schema.New(Name, func() schema.Object { return &Chore{} })

	get, set := schema.Accessor(
		func(c *Chore) any { return c.Name },
		func(c *Chore, v any) error {
			name, _ := v.(string)
			c.Name = name
			return nil
		},
	)
	s.MustDefine("name", schema.TypeString,
		schema.Describe("What needs doing"),
		schema.Get(get), schema.Set(set))

	get, set = schema.Accessor(
		func(c *Chore) any { return c.LastCompleted },
		func(c *Chore, v any) error {
			switch t := v.(type) {
			case nil:
				c.LastCompleted = nil
			case time.Time:
				c.Complete(t)
			default:
				return fault.New(fault.KindValidation, "last_completed must be a date")
			}
			return nil
		},
	)
	s.MustDefine("last_completed", schema.TypeDate,
		schema.Source("LastCompleted"),
		schema.Describe("When the chore was last done"),
		schema.Get(get), schema.Set(set))

	get, _ = schema.Accessor(func(c *Chore) any { return c.IsComplete() }, nil)
	s.MustDefine("is_complete", schema.TypeBoolean,
		schema.Virtual(), schema.Readonly(),
		schema.Describe("True once the chore has been completed"),
		schema.Get(get))

	return s.Seal()
}

// Register migrates the backend, builds the chore store with its complete
// extension, and mounts it on the router.
func Register(ctx context.Context, reg *registry.Registry, rt *route.Router, backend ports.RecordStore, clock ports.Clock, opts ...store.Option) (*registry.Resource, error) {
	sch := Schema()
	if err := backend.Migrate(ctx, sch); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", Name, err)
	}

	s := store.New(sch, backend, opts...)
	if err := s.Extend(MethodComplete, completeMethod(s, clock)); err != nil {
		return nil, err
	}

	res, err := reg.Register(s, "")
	if err != nil {
		return nil, err
	}
	if err := rt.Mount(res); err != nil {
		return nil, err
	}
	if err := rt.Handle(Name, http.MethodPost, "/:id/complete", MethodComplete, http.StatusOK); err != nil {
		return nil, err
	}
	return res, nil
}

func completeMethod(s *store.Store, clock ports.Clock) store.Method {
	return store.Method{
		Params:      []string{schema.IDField},
		Description: "Mark a chore as done now",
		Call: func(ctx context.Context, args store.Args) (any, error) {
			id, err := args.String(schema.IDField)
			if err != nil {
				return nil, err
			}
			return s.Modify(ctx, id, func(obj schema.Object) error {
				obj.(*Chore).Complete(clock.Now())
				return nil
			})
		},
	}
}

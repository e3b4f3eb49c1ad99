/*
Package schema describes the external shape of a resource type.

A schema is an ordered list of attributes. Each attribute has an external
name, a semantic type, persistence and readonly flags, and explicit accessor
functions that read and write the value on a domain object. No reflection is
involved: the accessors are registered when the attribute is defined.

# Defining a schema

	s := schema.New("chore", func() schema.Object { return &Chore{} })

	get, set := schema.Accessor(
		func(c *Chore) any { return c.Name },
		func(c *Chore, v any) error { c.Name, _ = v.(string); return nil },
	)
	s.Define("name", schema.TypeString, schema.Get(get), schema.Set(set))

	s.Define("is_complete", schema.TypeBoolean,
		schema.Virtual(), schema.Readonly(), schema.Get(isComplete))

	s.Seal()

# Attribute flags

  - Persisted attributes (the default) are stored by the store and can be
    used as filters.
  - Virtual attributes are computed from the domain object and appear in
    serialized output only, unless they also have a setter.
  - Readonly attributes are rejected on every write path.

# Identity

Every domain object implements Object. The id is implicit: it is always
serialized first and is never a writable attribute.

# Definitions from YAML

Resources without Go types can be declared in YAML and backed by Record:

	resources:
	  - name: note
	    attributes:
	      - { name: title, type: string }
	      - { name: pinned, type: boolean }
	      - { name: has_title, type: boolean, computed: "title != nil && title != ''" }
*/
package schema

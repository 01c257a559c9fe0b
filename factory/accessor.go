package factory

import (
	"context"
	"fmt"
	"reflect"
)

// capKey caches capability resolution per (plugin type, attribute name).
type capKey struct {
	typ  reflect.Type
	name string
}

// capability resolves a named attribute on a plugin value. It is either a
// plain field read or a zero-argument method call; plugin authors may
// expose either form under the same configured name.
type capability interface {
	resolve(v any) (any, error)
}

// typeNameCapability is the default identifier: the plugin's own type name.
type typeNameCapability struct{}

func (typeNameCapability) resolve(v any) (any, error) {
	return typeName(reflect.TypeOf(v)), nil
}

// methodCapability calls a zero-argument method and uses its result.
type methodCapability struct{ index int }

func (c methodCapability) resolve(v any) (any, error) {
	out := reflect.ValueOf(v).Method(c.index).Call(nil)
	return out[0].Interface(), nil
}

// fieldCapability reads an exported struct field directly.
type fieldCapability struct {
	index []int
	deref bool
}

func (c fieldCapability) resolve(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if c.deref {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot read attribute from nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	return rv.FieldByIndex(c.index).Interface(), nil
}

// missingCapability records that the type exposes neither form.
type missingCapability struct{ name string }

func (c missingCapability) resolve(v any) (any, error) {
	return nil, fmt.Errorf("no attribute or zero-argument method %q on %s",
		c.name, typeName(reflect.TypeOf(v)))
}

// capabilityFor resolves how the named attribute is read from the given
// plugin type, once, and caches the decision.
func (f *Factory) capabilityFor(t reflect.Type, name string) capability {
	if name == "" {
		return typeNameCapability{}
	}
	key := capKey{typ: t, name: name}
	if c, ok := f.caps[key]; ok {
		return c
	}
	c := buildCapability(t, name)
	f.caps[key] = c
	return c
}

func buildCapability(t reflect.Type, name string) capability {
	if m, ok := t.MethodByName(name); ok && m.Type.NumIn() == 1 && m.Type.NumOut() >= 1 {
		return methodCapability{index: m.Index}
	}

	base, deref := t, false
	if base.Kind() == reflect.Pointer {
		base, deref = base.Elem(), true
	}
	if base.Kind() == reflect.Struct {
		if sf, ok := base.FieldByName(name); ok && sf.IsExported() {
			return fieldCapability{index: sf.Index, deref: deref}
		}
	}

	return missingCapability{name: name}
}

// identifierOf resolves the lookup key of a plugin. When the configured
// identifier attribute is absent the type name is used instead, so foreign
// but conforming values stay addressable.
func (f *Factory) identifierOf(ctx context.Context, plugin any) string {
	t := reflect.TypeOf(plugin)
	value, err := f.capabilityFor(t, f.identifier).resolve(plugin)
	if err != nil {
		f.logf(ctx, false, "Identifier attribute missing, falling back to type name.",
			"plugin", typeName(t), "error", err)
		return typeName(t)
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// versionOf resolves the version of a plugin as one totally ordered numeric
// domain. Integer and float attributes are both accepted.
func (f *Factory) versionOf(plugin any) (float64, error) {
	value, err := f.capabilityFor(reflect.TypeOf(plugin), f.version).resolve(plugin)
	if err != nil {
		return 0, err
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	default:
		return 0, fmt.Errorf("version attribute of %s is %T, want a numeric value",
			typeName(reflect.TypeOf(plugin)), value)
	}
}

// typeName reports the bare name of a plugin's type, looking through
// pointers, matching the default identifier semantics.
func typeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

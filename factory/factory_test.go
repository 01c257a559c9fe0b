package factory

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// greeter is the abstract contract used throughout the factory tests.
type greeter interface{ Greet() string }

var greeterContract = reflect.TypeOf((*greeter)(nil)).Elem()

type helloGreeter struct{}

func (helloGreeter) Greet() string { return "hello" }

type politeGreeter struct{}

func (politeGreeter) Greet() string { return "good day" }

// rogue does not satisfy the contract.
type rogue struct{}

// The handler family shares one identifier across three versions.
type handlerV1 struct{}

func (handlerV1) Greet() string    { return "v1" }
func (handlerV1) Name() string     { return "Handler" }
func (handlerV1) Version() float64 { return 1 }

type handlerV2 struct{}

func (handlerV2) Greet() string    { return "v2" }
func (handlerV2) Name() string     { return "Handler" }
func (handlerV2) Version() float64 { return 2 }

type handlerV3 struct{}

func (handlerV3) Greet() string    { return "v3" }
func (handlerV3) Name() string     { return "Handler" }
func (handlerV3) Version() float64 { return 3 }

// The dup pair shares both identifier and version.
type dupA struct{}

func (dupA) Greet() string    { return "a" }
func (dupA) Name() string     { return "Dup" }
func (dupA) Version() float64 { return 1 }

type dupB struct{}

func (dupB) Greet() string    { return "b" }
func (dupB) Name() string     { return "Dup" }
func (dupB) Version() float64 { return 1 }

// The field family exposes identifier and version as struct fields.
type fieldV1 struct {
	Label   string
	Release int
}

func (fieldV1) Greet() string { return "field v1" }

type fieldV2 struct {
	Label   string
	Release float64
}

func (fieldV2) Greet() string { return "field v2" }

// numberedGreeter has a non-string identifier attribute.
type numberedGreeter struct{ Label int }

func (numberedGreeter) Greet() string { return "numbered" }

func newGreeterFactory(t *testing.T, cfg Config) *Factory {
	t.Helper()
	if cfg.Abstract == nil {
		cfg.Abstract = greeterContract
	}
	f, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return f
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{})
	assert.Error(t, err, "a contract type is mandatory")

	_, err = New(ctx, Config{Abstract: reflect.TypeOf(helloGreeter{})})
	assert.Error(t, err, "a concrete type is not a contract")

	f, err := New(ctx, Config{Abstract: greeterContract})
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestRegisterAndRequest(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{})

	assert.True(t, f.Register(helloGreeter{}))
	assert.False(t, f.Register(nil))
	assert.False(t, f.Register(42))
	assert.False(t, f.Register(rogue{}))

	got := f.Request(ctx, "helloGreeter")
	assert.Equal(t, helloGreeter{}, got)

	assert.Nil(t, f.Request(ctx, "missingGreeter"))
}

func TestRegisterPointerPlugin(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{})

	hg := &helloGreeter{}
	require.True(t, f.Register(hg))

	// The default identifier looks through the pointer to the type name.
	got := f.Request(ctx, "helloGreeter")
	assert.Same(t, hg, got)
}

func TestRegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{})

	assert.True(t, f.Register(helloGreeter{}))
	assert.True(t, f.Register(helloGreeter{}))

	assert.Len(t, f.Plugins(ctx), 1)
	assert.Equal(t, []string{"helloGreeter"}, f.Identifiers(ctx))
}

func TestString(t *testing.T) {
	f := newGreeterFactory(t, Config{PluginIdentifier: "Name"})
	f.Register(helloGreeter{})

	assert.Equal(t, "Factory(identifier=Name, plugins=1)", f.String())

	unnamed := newGreeterFactory(t, Config{})
	assert.Contains(t, unnamed.String(), "<type name>")
}

func TestVersionedRequests(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{
		PluginIdentifier:     "Name",
		VersioningIdentifier: "Version",
	})

	// Registration order must not influence version resolution.
	require.True(t, f.Register(handlerV2{}))
	require.True(t, f.Register(handlerV3{}))
	require.True(t, f.Register(handlerV1{}))

	t.Run("request returns the highest version", func(t *testing.T) {
		assert.Equal(t, handlerV3{}, f.Request(ctx, "Handler"))
	})

	t.Run("request by exact version", func(t *testing.T) {
		assert.Equal(t, handlerV2{}, f.RequestVersion(ctx, "Handler", 2))
	})

	t.Run("missing version is a miss", func(t *testing.T) {
		assert.Nil(t, f.RequestVersion(ctx, "Handler", 9))
	})

	t.Run("versions are ascending", func(t *testing.T) {
		assert.Equal(t, []float64{1, 2, 3}, f.Versions(ctx, "Handler"))
	})

	t.Run("one identifier, one representative", func(t *testing.T) {
		assert.Equal(t, []string{"Handler"}, f.Identifiers(ctx))
		require.Len(t, f.Plugins(ctx), 1)
		assert.Equal(t, handlerV3{}, f.Plugins(ctx)[0])
	})

	t.Run("versions of an unknown identifier are empty", func(t *testing.T) {
		assert.Empty(t, f.Versions(ctx, "Nobody"))
	})
}

func TestVersionsWithoutRule(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{})
	f.Register(helloGreeter{})

	assert.Nil(t, f.Versions(ctx, "helloGreeter"))
}

func TestUnversionedRequestIsFirstMatch(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{PluginIdentifier: "Name"})

	require.True(t, f.Register(handlerV1{}))
	require.True(t, f.Register(handlerV2{}))

	assert.Equal(t, handlerV1{}, f.Request(ctx, "Handler"))
}

func TestDuplicateVersionLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{
		PluginIdentifier:     "Name",
		VersioningIdentifier: "Version",
	})

	require.True(t, f.Register(dupA{}))
	require.True(t, f.Register(dupB{}))

	// Two plugins claiming the same identifier and version collapse to the
	// last one found. Intentional; see DESIGN.md.
	assert.Equal(t, dupB{}, f.Request(ctx, "Dup"))
	assert.Equal(t, dupB{}, f.RequestVersion(ctx, "Dup", 1))
	assert.Equal(t, []float64{1, 1}, f.Versions(ctx, "Dup"))
}

func TestFieldBasedAccessors(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{
		PluginIdentifier:     "Label",
		VersioningIdentifier: "Release",
	})

	require.True(t, f.Register(fieldV1{Label: "Field", Release: 1}))
	require.True(t, f.Register(fieldV2{Label: "Field", Release: 2.5}))

	assert.Equal(t, fieldV2{Label: "Field", Release: 2.5}, f.Request(ctx, "Field"))
	assert.Equal(t, fieldV1{Label: "Field", Release: 1}, f.RequestVersion(ctx, "Field", 1))
	assert.Equal(t, []float64{1, 2.5}, f.Versions(ctx, "Field"))
}

func TestFieldAccessThroughPointer(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{PluginIdentifier: "Label"})

	p := &fieldV1{Label: "Ptr", Release: 3}
	require.True(t, f.Register(p))

	assert.Same(t, p, f.Request(ctx, "Ptr"))
}

func TestIdentifierFallsBackToTypeName(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{PluginIdentifier: "Label"})

	// helloGreeter has no Label, so it stays addressable by type name.
	require.True(t, f.Register(helloGreeter{}))
	assert.Equal(t, helloGreeter{}, f.Request(ctx, "helloGreeter"))
}

func TestNonStringIdentifierIsStringified(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{PluginIdentifier: "Label"})

	require.True(t, f.Register(numberedGreeter{Label: 7}))
	assert.Equal(t, numberedGreeter{Label: 7}, f.Request(ctx, "7"))
}

func TestNonNumericVersionIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{
		PluginIdentifier:     "Label",
		VersioningIdentifier: "Label",
	})

	// Label is a string, so as a version attribute it is unusable.
	require.True(t, f.Register(fieldV1{Label: "Oops"}))
	assert.Nil(t, f.Request(ctx, "Oops"))
	assert.Empty(t, f.Versions(ctx, "Oops"))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	f := newGreeterFactory(t, Config{})
	f.Register(helloGreeter{})
	f.Register(politeGreeter{})

	f.Clear()

	assert.Empty(t, f.Identifiers(ctx))
	assert.Empty(t, f.Plugins(ctx))
	assert.Empty(t, f.Paths())
}

func TestCandidatePattern(t *testing.T) {
	matching := []string{"plugins.go", "general.go", "handler.so", "aB.go"}
	for _, name := range matching {
		assert.True(t, candidatePattern.MatchString(name), name)
	}

	rejected := []string{"_private.go", "9lives.go", " spaced.go", "notes.txt", "plugins.go.bak", "Makefile"}
	for _, name := range rejected {
		assert.False(t, candidatePattern.MatchString(name), name)
	}
}

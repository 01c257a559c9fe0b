// Package readers demonstrates the plugin factory with a family of
// file-format reader plugins. The ReaderPlugin contract is the abstract the
// factory is built over; the concrete readers announce themselves so a scan
// of this directory discovers them, and the DataReader facade registers
// them directly for callers that do not scan at all.
package readers

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/plugfactory/factory"
)

// ReaderPlugin is the abstract contract a file-format reader must satisfy
// to be eligible for the factory.
type ReaderPlugin interface {
	// Name identifies the reader within the factory.
	Name() string

	// Version differentiates readers sharing a name; higher wins.
	Version() float64

	// CanRead reports whether the reader understands the given file.
	CanRead(path string) bool

	// Contents returns the data collated from the file.
	Contents(path string) (map[string]any, error)
}

// Contract returns the reflect.Type handed to the factory as its abstract.
func Contract() reflect.Type {
	return reflect.TypeOf((*ReaderPlugin)(nil)).Elem()
}

// DataReader reads data files through whichever reader plugin claims them.
type DataReader struct {
	factory *factory.Factory
}

// NewDataReader builds a DataReader with the built-in readers registered.
// Additional readers can be discovered later through the embedded factory.
func NewDataReader(ctx context.Context) (*DataReader, error) {
	f, err := factory.New(ctx, factory.Config{
		Abstract:             Contract(),
		PluginIdentifier:     "Name",
		VersioningIdentifier: "Version",
	})
	if err != nil {
		return nil, err
	}
	for _, reader := range Builtins() {
		f.Register(reader)
	}
	return &DataReader{factory: f}, nil
}

// Factory exposes the underlying plugin factory, e.g. to add search paths.
func (d *DataReader) Factory() *factory.Factory {
	return d.factory
}

// Read hands the file to the first reader plugin that can read it.
func (d *DataReader) Read(ctx context.Context, path string) (map[string]any, error) {
	for _, p := range d.factory.Plugins(ctx) {
		reader := p.(ReaderPlugin)
		if reader.CanRead(path) {
			return reader.Contents(path)
		}
	}
	return nil, fmt.Errorf("no reader plugin can read %s", path)
}

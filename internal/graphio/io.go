package graphio

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/yzhliu/nnvm/graph"
)

// ReadGraphFile reads a JSON graph description from path and converts it
// to a graph.Graph and graph.Attributes.
func ReadGraphFile(path string) (*graph.Graph, *graph.Attributes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "graphio: open %s", path)
	}
	defer f.Close()
	return ReadGraph(f)
}

// ReadGraph decodes a JSON graph description from r.
func ReadGraph(r io.Reader) (*graph.Graph, *graph.Attributes, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, errors.Wrap(err, "graphio: decode")
	}
	return ToGraph(doc)
}

// WriteGraphFile serializes g and attrs as indented JSON to path,
// creating or truncating it.
func WriteGraphFile(g *graph.Graph, attrs *graph.Attributes, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "graphio: create %s", path)
	}
	defer f.Close()
	return WriteGraph(g, attrs, f)
}

// WriteGraph serializes g and attrs as indented JSON to w.
func WriteGraph(g *graph.Graph, attrs *graph.Attributes, w io.Writer) error {
	doc, err := FromGraph(g, attrs)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "graphio: encode")
	}
	return nil
}

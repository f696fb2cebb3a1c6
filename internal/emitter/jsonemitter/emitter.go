// Package jsonemitter writes the resolved store as a single JSON document,
// for tooling that wants the type model without a target language.
package jsonemitter

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/mark3labs/oapi2types/internal/emitter"
	"github.com/mark3labs/oapi2types/internal/model"
)

const (
	name      = "jsonemitter"
	modelFile = "model.json"
)

// Document is the JSON form of a resolved store.
type Document struct {
	Title   string   `json:"title,omitempty"`
	Version string   `json:"version,omitempty"`
	Order   []string `json:"order"`
	Types   []Entry  `json:"types"`
}

// Entry is one bound name. Exactly one of Record, Enum and Alias is set.
type Entry struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	ReliesOn []string       `json:"reliesOn,omitempty"`
	WantedBy []string       `json:"wantedBy,omitempty"`
	Record   *Record        `json:"record,omitempty"`
	Enum     *model.Enum    `json:"enum,omitempty"`
	Alias    *model.TypeRef `json:"alias,omitempty"`
}

// Record flattens the ordered field map into a list.
type Record struct {
	Description string       `json:"description,omitempty"`
	Fields      []FieldEntry `json:"fields"`
}

type FieldEntry struct {
	Key string `json:"key"`
	model.Field
}

// Emit writes model.json.
func Emit(ctx context.Context, in *emitter.Input, opts emitter.Options) (*emitter.Result, error) {
	if err := emitter.Check(name, in, opts); err != nil {
		return nil, err
	}
	doc, err := Build(in)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: marshal: %w", name, err)
	}
	files := map[string][]byte{modelFile: append(data, '\n')}
	return emitter.Finish(ctx, name, files, opts, &emitter.Result{Order: doc.Order})
}

// Build converts the input into its JSON document, in render order.
func Build(in *emitter.Input) (*Document, error) {
	order, err := in.Index.Order()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	doc := &Document{Title: in.Title, Version: in.Version, Order: order, Types: make([]Entry, 0, len(order))}
	for _, n := range order {
		e := Entry{
			Name:     n,
			Kind:     in.Index.Kind(n),
			ReliesOn: in.Index.ReliesOn(n),
			WantedBy: in.Index.WantedBy(n),
		}
		if t, ok := in.Store.Alias(n); ok {
			e.Alias = &t
		} else if d, ok := in.Store.Declaration(n); ok {
			switch d := d.(type) {
			case *model.Record:
				e.Record = flatten(d)
			case *model.Enum:
				e.Enum = d
			}
		} else {
			return nil, fmt.Errorf("%s: %q is not bound", name, n)
		}
		doc.Types = append(doc.Types, e)
	}
	return doc, nil
}

func flatten(r *model.Record) *Record {
	out := &Record{Description: r.Description, Fields: make([]FieldEntry, 0, r.Fields.Len())}
	for _, key := range r.Keys() {
		f, _ := r.Field(key)
		out.Fields = append(out.Fields, FieldEntry{Key: key, Field: f})
	}
	return out
}

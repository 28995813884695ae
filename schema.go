package sheetmusic

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jacoelho/xsd"
	"github.com/jacoelho/xsd/xsderrors"
)

// The schema ships inside the binary; compiling it from embedded bytes
// keeps schema resolution independent of the process working directory.
//
//go:embed schema/musicxml.xsd
var schemaBytes []byte

// schemaValidator wraps the compiled MusicXML schema. Compilation happens
// once per parser; the compiled engine is read-only afterwards and safe
// to share across concurrent Parse calls.
type schemaValidator struct {
	engine *xsd.Engine
}

func newSchemaValidator() (*schemaValidator, error) {
	engine, err := xsd.Compile(xsd.Bytes("musicxml.xsd", schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("compile bundled schema: %w", err)
	}
	return &schemaValidator{engine: engine}, nil
}

// validate checks content against the schema and converts a failure into
// a ValidateError carrying the path and the violation list.
func (v *schemaValidator) validate(path string, content []byte) error {
	err := v.engine.Validate(bytes.NewReader(content))
	if err == nil {
		return nil
	}

	var violations []*xsderrors.Error
	var list xsderrors.Errors
	var single *xsderrors.Error
	if errors.As(err, &list) {
		for _, item := range list {
			var violation *xsderrors.Error
			if errors.As(item, &violation) {
				violations = append(violations, violation)
			}
		}
	} else if errors.As(err, &single) {
		violations = append(violations, single)
	}
	if len(violations) == 0 {
		violations = append(violations, &xsderrors.Error{Message: err.Error()})
	}
	return &ValidateError{Path: path, Violations: violations}
}

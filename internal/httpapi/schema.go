// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/voro/voro/internal/auth"
)

// CodeBodyTooLarge is returned when a request body exceeds the limit.
const CodeBodyTooLarge = "HTTP_BODY_TOO_LARGE"

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username" jsonschema:"minLength=3,maxLength=16"`
	Password string `json:"password" jsonschema:"minLength=8,maxLength=60"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" jsonschema:"minLength=3,maxLength=16"`
	Password string `json:"password" jsonschema:"minLength=8,maxLength=60"`
}

// ChangePasswordRequest is the body of POST /change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" jsonschema:"minLength=8,maxLength=60"`
	NewPassword string `json:"new_password" jsonschema:"minLength=8,maxLength=60"`
}

// Schema names.
const (
	SchemaRegister       = "register"
	SchemaLogin          = "login"
	SchemaChangePassword = "change_password"
)

var requestTypes = map[string]struct {
	value any
	title string
}{
	SchemaRegister:       {&RegisterRequest{}, "Voro registration request"},
	SchemaLogin:          {&LoginRequest{}, "Voro login request"},
	SchemaChangePassword: {&ChangePasswordRequest{}, "Voro password change request"},
}

var (
	compileOnce sync.Once
	compiled    map[string]*jschema.Schema
	compileErr  error
)

// SchemaNames lists the request schemas in stable order.
func SchemaNames() []string {
	names := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SchemaID returns the $id of a request schema.
func SchemaID(name string) string {
	return "https://voro.dev/schemas/" + name + ".schema.json"
}

// GenerateSchema reflects the JSON Schema for the named request body.
// Unknown properties are disallowed and every field is required.
func GenerateSchema(name string) ([]byte, error) {
	rt, ok := requestTypes[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("unknown request schema")
	}

	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(rt.value)
	schema.ID = jsonschema.ID(SchemaID(name))
	schema.Title = rt.title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", name).Wrap(err)
	}
	return data, nil
}

func compileSchemas() (map[string]*jschema.Schema, error) {
	compileOnce.Do(func() {
		out := make(map[string]*jschema.Schema, len(requestTypes))
		c := jschema.NewCompiler()
		for name := range requestTypes {
			data, err := GenerateSchema(name)
			if err != nil {
				compileErr = err
				return
			}
			doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
				return
			}
			if err := c.AddResource(SchemaID(name), doc); err != nil {
				compileErr = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
				return
			}
			sch, err := c.Compile(SchemaID(name))
			if err != nil {
				compileErr = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
				return
			}
			out[name] = sch
		}
		compiled = out
	})
	return compiled, compileErr
}

// decodeBody reads the request body, validates it against the named schema
// and unmarshals it into dst. Failures carry auth.CodeValidation, or
// CodeBodyTooLarge when the body limit was hit.
func decodeBody(r *http.Request, name string, dst any) error {
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}
	sch, ok := schemas[name]
	if !ok {
		return oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("unknown request schema")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code(CodeBodyTooLarge).
				With("limit", tooLarge.Limit).
				Errorf("request body too large")
		}
		return oops.Code(auth.CodeValidation).Errorf("failed to read request body: %v", err)
	}

	inst, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return oops.Code(auth.CodeValidation).Errorf("request body is not valid JSON")
	}

	if err := sch.Validate(inst); err != nil {
		return oops.Code(auth.CodeValidation).
			With("schema", name).
			With("details", FormatSchemaError(err)).
			Errorf("request body does not match schema")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return oops.Code(auth.CodeValidation).Errorf("request body is not valid JSON")
	}
	return nil
}

// FormatSchemaError flattens a validation error to its leaf messages.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	var ve *jschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	lines := strings.Split(ve.Error(), "\n")
	msgs := make([]string, 0, len(lines))
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-")); line != "" {
			msgs = append(msgs, line)
		}
	}
	if len(msgs) == 0 {
		return ve.Error()
	}
	return strings.Join(msgs, "; ")
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed layout.schema.json
var layoutSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// LayoutSchema returns the raw JSON Schema for layout documents.
func LayoutSchema() []byte { return layoutSchema }

// SchemaError lists every violation found in a document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "layout does not conform to schema: " + strings.Join(e.Problems, "; ")
}

// ValidateLayoutJSON checks a layout document against the embedded schema.
// It returns *SchemaError when the document parses but is invalid.
func ValidateLayoutJSON(data []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(layoutSchema))
	})
	if schemaErr != nil {
		return fmt.Errorf("load layout schema: %w", schemaErr)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate layout: %w", err)
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Problems = append(se.Problems, e.String())
	}
	return se
}

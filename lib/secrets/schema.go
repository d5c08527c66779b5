/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package secrets

import (
	"bytes"
	"encoding/json"
	"log"
	"net/url"
	"strings"

	"github.com/gravitational/podinfo/lib/defaults"

	"github.com/gravitational/trace"
	"github.com/santhosh-tekuri/jsonschema"
)

var schema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft6
	if err := compiler.AddResource("schema.json", strings.NewReader(secretSchema)); err != nil {
		log.Fatalf("Failed to add schema resource: %v.", err)
	}

	var err error
	schema, err = compiler.Compile("schema.json")
	if err != nil {
		log.Fatalf("Failed to parse schema: %v.", err)
	}
}

// Validate checks a candidate secret payload against the secret schema
// and the minimum length requirements for rotated material. It is run
// against the pending version before rotation promotes it.
func Validate(payload []byte) error {
	if err := schema.Validate(bytes.NewReader(payload)); err != nil {
		return trace.BadParameter("secret payload failed validation: %v", err)
	}
	var secrets Secrets
	if err := json.Unmarshal(payload, &secrets); err != nil {
		return trace.Wrap(err)
	}
	u, err := url.Parse(secrets.DatabaseURL)
	if err != nil {
		return trace.BadParameter("invalid database URL: %v", err)
	}
	if u.User == nil {
		return trace.BadParameter("database URL carries no credentials")
	}
	password, _ := u.User.Password()
	if len(password) < defaults.MinPasswordLength {
		return trace.BadParameter("database password is shorter than %v characters",
			defaults.MinPasswordLength)
	}
	return nil
}

const secretSchema = `
{
  "$schema": "http://json-schema.org/draft-06/schema#",
  "description": "Podinfo application secret schema",
  "type": "object",
  "required": ["SUPER_SECRET_TOKEN", "DATABASE_URL", "API_KEY"],
  "properties": {
    "SUPER_SECRET_TOKEN": {"type": "string", "minLength": 16},
    "DATABASE_URL": {"type": "string", "minLength": 1},
    "API_KEY": {"type": "string", "minLength": 16}
  }
}
`

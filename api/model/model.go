/*
Copyright 2024 NordLion Authors.

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

package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339
)

func validateDateFormat(layout, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return errors.New("invalid type for date")
		}
		if s == "" {
			return nil
		}
		if _, err := time.Parse(layout, s); err != nil {
			return errors.New(message)
		}
		return nil
	}
}

// parseOptional parses s with layout, returning nil for an empty string.
// Values are expected to have passed validation already.
func parseOptional(layout, s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseDate(s string) time.Time {
	if t := parseOptional(dateLayout, s); t != nil {
		return *t
	}
	return time.Time{}
}

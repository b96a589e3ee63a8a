// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/conductor/pkg/errors"
)

// LoadPlan loads a plan from a YAML or JSON file. Files without a known
// extension are sniffed.
func LoadPlan(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.CodeInvalidArguments, "plan path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArguments, "read plan", err).WithContext("path", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parsePlanAuto(data)
	}
}

func parsePlanAuto(data []byte) (*Plan, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if plan, err := ParseJSON(data); err == nil {
			return plan, nil
		}
	}
	if plan, err := ParseYAML(data); err == nil {
		return plan, nil
	}
	if plan, err := ParseJSON(data); err == nil {
		return plan, nil
	}
	return nil, errors.New(errors.CodeInvalidPlan, "unsupported plan format", nil)
}

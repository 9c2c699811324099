// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Basis      string `validate:"omitempty,oneof=created updated closed"`
	WindowDays int    `validate:"omitempty,min=1,max=31"`
	Page       int    `validate:"min=1"`
}

func TestStructValid(t *testing.T) {
	tests := []sampleRequest{
		{Page: 1},
		{Basis: "created", WindowDays: 30, Page: 5},
		{Basis: "closed", WindowDays: 1, Page: 1},
	}
	for _, req := range tests {
		if err := Struct(&req); err != nil {
			t.Errorf("Struct(%+v) = %v, want nil", req, err)
		}
	}
}

func TestStructInvalid(t *testing.T) {
	tests := []struct {
		name      string
		req       sampleRequest
		wantField string
		wantTag   string
	}{
		{"bad basis", sampleRequest{Basis: "bogus", Page: 1}, "Basis", "oneof"},
		{"window too large", sampleRequest{WindowDays: 45, Page: 1}, "WindowDays", "max"},
		{"page missing", sampleRequest{}, "Page", "min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if len(err.Fields) != 1 {
				t.Fatalf("fields = %d, want 1: %v", len(err.Fields), err)
			}
			f := err.Fields[0]
			if f.Field != tt.wantField || f.Tag != tt.wantTag {
				t.Errorf("failed field = %s/%s, want %s/%s", f.Field, f.Tag, tt.wantField, tt.wantTag)
			}
			if f.Message == "" {
				t.Errorf("message empty")
			}
		})
	}
}

func TestStructCombinesMessages(t *testing.T) {
	err := Struct(&sampleRequest{Basis: "bogus", WindowDays: 99})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(err.Fields))
	}
	if got := err.Error(); !strings.Contains(got, ";") {
		t.Errorf("combined message = %q, want ; separated", got)
	}
}

package index

import (
	"reflect"
	"testing"
)

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"single term", `golang`, `"golang"`, true},
		{"implicit and", `go testing`, `"go" AND "testing"`, true},
		{"explicit and", `go AND testing`, `"go" AND "testing"`, true},
		{"or", `go OR rust`, `"go" OR "rust"`, true},
		{"not", `go NOT generics`, `"go" NOT "generics"`, true},
		{"phrase", `"deep work"`, `"deep work"`, true},
		{"phrase and term", `"deep work" focus`, `"deep work" AND "focus"`, true},
		{"title field", `title:python`, `title:"python"`, true},
		{"tags field", `tags:tutorial`, `tags:"tutorial"`, true},
		{"field phrase", `title:"deep work"`, `title:"deep work"`, true},
		{"field and field", `title:python AND tags:tutorial`, `title:"python" AND tags:"tutorial"`, true},
		{"prefix", `data*`, `"data"*`, true},
		{"field prefix", `title:data*`, `title:"data"*`, true},
		{"leading operator", `AND go`, "", false},
		{"trailing operator", `go AND`, "", false},
		{"double operator", `go AND OR rust`, "", false},
		{"unterminated phrase", `"deep work`, "", false},
		{"interior star", `da*ta`, "", false},
		{"empty", ``, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rewriteQuery(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (match %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("match = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallbackQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`go testing`, `"go" "testing"`},
		{`"deep work`, `"deep" "work"`},
		{`title:python`, `"python"`},
		{`da*ta (weird)`, `"da*ta" "weird"`},
		{`   `, ``},
	}
	for _, tt := range tests {
		if got := fallbackQuery(tt.in); got != tt.want {
			t.Errorf("fallbackQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`Go Testing`, []string{"go", "testing"}},
		{`title:Python AND tags:tutorial`, []string{"python", "tutorial"}},
		{`"Deep Work" focus`, []string{"deep work", "focus"}},
		{`"broken quote`, []string{"broken", "quote"}},
	}
	for _, tt := range tests {
		if got := queryTerms(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("queryTerms(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

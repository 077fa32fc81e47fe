package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/sales.txt
	salesRaw string

	//go:embed template/verification.txt
	verificationRaw string

	//go:embed template/underwriting.txt
	underwritingRaw string

	//go:embed template/judge.txt
	judgeRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Sales        string
	Verification string
	Underwriting string
	Judge        string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Sales:        strings.TrimSpace(salesRaw),
		Verification: strings.TrimSpace(verificationRaw),
		Underwriting: strings.TrimSpace(underwritingRaw),
		Judge:        strings.TrimSpace(judgeRaw),
	}
}

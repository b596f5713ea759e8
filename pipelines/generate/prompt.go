// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package generate builds prompts and calls the generative-text backend.
package generate

import (
	"strings"

	"github.com/mdhender/blogbatch/model"
)

// FallbackDetails replaces an empty store introduction in the prompt.
const FallbackDetails = "Store information was not provided."

// UntitledStore replaces an empty store name in the prompt.
const UntitledStore = "Untitled store"

// DefaultTemplate is the blog review prompt. Placeholders are {{name}}.
const DefaultTemplate = `You are writing a blog review of a local business for a Korean blog platform.

Store name: {{storeName}}
Store details: {{storeDetails}}
Store page: {{storeURL}}
Main keyword: {{mainKeyword}}
Sub keywords: {{subKeywords}}

Write as a {{customerGender}} customer in their {{ageGroup}} who recently visited.
Use the main keyword naturally three to five times and each sub keyword at least once.
Describe the visit, the atmosphere, what was ordered or used, and a short recommendation.
Do not invent prices or opening hours. Return plain text with short paragraphs and a title on the first line.`

// PromptData holds the values substituted into a prompt template.
type PromptData struct {
	StoreName      string
	StoreDetails   string
	StoreURL       string
	MainKeyword    string
	SubKeywords    string
	CustomerGender string
	AgeGroup       string
}

// NewPromptData builds the prompt values for a row. Empty details become
// FallbackDetails; the sub-keywords are comma-joined with blanks dropped.
func NewPromptData(row model.Row, details string, chooser Chooser) PromptData {
	storeName := strings.TrimSpace(row.StoreName)
	if storeName == "" {
		storeName = UntitledStore
	}
	details = strings.TrimSpace(details)
	if details == "" {
		details = FallbackDetails
	}
	return PromptData{
		StoreName:      storeName,
		StoreDetails:   details,
		StoreURL:       row.StoreURL,
		MainKeyword:    row.MainKeyword,
		SubKeywords:    strings.Join(row.Keywords(), ", "),
		CustomerGender: chooser.Gender(),
		AgeGroup:       chooser.AgeGroup(),
	}
}

func (d PromptData) values() map[string]string {
	return map[string]string{
		"storeName":      d.StoreName,
		"storeDetails":   d.StoreDetails,
		"storeURL":       d.StoreURL,
		"mainKeyword":    d.MainKeyword,
		"subKeywords":    d.SubKeywords,
		"customerGender": d.CustomerGender,
		"ageGroup":       d.AgeGroup,
	}
}

// Prompt fills every {{name}} placeholder in template that PromptData knows.
// Unknown placeholders are left as they are.
func Prompt(template string, data PromptData) string {
	values := data.values()
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

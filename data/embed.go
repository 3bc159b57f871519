package data

import (
	_ "embed"
)

// ChecklistTemplates holds the review checklist for every document category
//
//go:embed checklists.yaml
var ChecklistTemplates []byte

package models

import (
	"fmt"
	"strings"
)

// Category is a document category of a permit application
type Category string

const (
	CategorySitePlan          Category = "site_plan"
	CategoryFacilityPlan      Category = "facility_plan"
	CategoryEgressPlan        Category = "egress_plan"
	CategoryStructuralPlans   Category = "structural_plans"
	CategoryCommodities       Category = "commodities"
	CategoryFireProtection    Category = "fire_protection"
	CategorySpecialInspection Category = "special_inspection"
	CategoryCoverLetter       Category = "cover_letter"
)

// Categories is the fixed category taxonomy in display order
var Categories = []Category{
	CategorySitePlan,
	CategoryFacilityPlan,
	CategoryEgressPlan,
	CategoryStructuralPlans,
	CategoryCommodities,
	CategoryFireProtection,
	CategorySpecialInspection,
	CategoryCoverLetter,
}

var categoryLabels = map[Category]string{
	CategorySitePlan:          "Site Plan",
	CategoryFacilityPlan:      "Facility Plan",
	CategoryEgressPlan:        "Egress Plan",
	CategoryStructuralPlans:   "Structural Plans",
	CategoryCommodities:       "Commodities",
	CategoryFireProtection:    "Fire Protection",
	CategorySpecialInspection: "Special Inspection",
	CategoryCoverLetter:       "Cover Letter",
}

// Valid reports whether c is part of the taxonomy
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human label, or the raw value for unknown categories
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Order returns the taxonomy position, unknown categories sort last
func (c Category) Order() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// ParseCategory validates a raw category value
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.TrimSpace(raw))
	if !c.Valid() {
		return "", fmt.Errorf("unknown document category %q", raw)
	}
	return c, nil
}

// DocumentStatus is the review state of a document version
type DocumentStatus string

const (
	StatusPendingReview DocumentStatus = "pending_review"
	StatusApproved      DocumentStatus = "approved"
	StatusRejected      DocumentStatus = "rejected"
)

// Valid reports whether s is a known review state
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// DisplayName is used in activity descriptions and notifications
func (s DocumentStatus) DisplayName() string {
	switch s {
	case StatusPendingReview:
		return "Pending Review"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectSubmitted  ProjectStatus = "submitted"
	ProjectApproved   ProjectStatus = "approved"
	ProjectClosed     ProjectStatus = "closed"
)

// Valid reports whether s is a known project state
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectDraft, ProjectInProgress, ProjectSubmitted, ProjectApproved, ProjectClosed:
		return true
	}
	return false
}

// Role is a stakeholder's function on a project
type Role string

const (
	RoleOwner      Role = "owner"
	RoleArchitect  Role = "architect"
	RoleEngineer   Role = "engineer"
	RoleContractor Role = "contractor"
	RoleConsultant Role = "consultant"
	RoleReviewer   Role = "reviewer"
	RoleInspector  Role = "inspector"
	RoleOther      Role = "other"
)

// Valid reports whether r is a known stakeholder role
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleArchitect, RoleEngineer, RoleContractor,
		RoleConsultant, RoleReviewer, RoleInspector, RoleOther:
		return true
	}
	return false
}

// TaskType is the kind of work assigned to a stakeholder
type TaskType string

const (
	TaskProvideDocument TaskType = "provide_document"
	TaskReviewDocument  TaskType = "review_document"
	TaskApproveDocument TaskType = "approve_document"
	TaskCollaborate     TaskType = "collaborate"
	TaskOther           TaskType = "other"
)

// Valid reports whether t is a known task type
func (t TaskType) Valid() bool {
	switch t {
	case TaskProvideDocument, TaskReviewDocument, TaskApproveDocument, TaskCollaborate, TaskOther:
		return true
	}
	return false
}

// Label is the human form used in notifications
func (t TaskType) Label() string {
	switch t {
	case TaskProvideDocument:
		return "Provide document"
	case TaskReviewDocument:
		return "Review document"
	case TaskApproveDocument:
		return "Approve document"
	case TaskCollaborate:
		return "Collaborate"
	}
	return "Task"
}

// TaskStatus is the progress state of a stakeholder task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

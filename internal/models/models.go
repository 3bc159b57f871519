// models.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Project is a permit application and the root of all workflow data
type Project struct {
	ID           uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	CustomerName string        `gorm:"size:255" json:"customerName"`
	Jurisdiction string        `gorm:"size:255" json:"jurisdiction"`
	Address      string        `gorm:"size:512" json:"address"`
	PermitNumber string        `gorm:"size:100" json:"permitNumber"`
	Status       ProjectStatus `gorm:"size:32;not null;default:draft" json:"status"`
	CreatedByID  string        `gorm:"size:64;not null;index" json:"createdById"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Document is one uploaded version of a file in a project category.
// The version key is (ProjectID, Category, FileName).
type Document struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID    uint64         `gorm:"not null;uniqueIndex:idx_document_version,priority:1" json:"projectId"`
	Category     Category       `gorm:"size:64;not null;uniqueIndex:idx_document_version,priority:2" json:"category"`
	FileName     string         `gorm:"size:255;not null;uniqueIndex:idx_document_version,priority:3" json:"fileName"`
	Version      int            `gorm:"not null;uniqueIndex:idx_document_version,priority:4" json:"version"`
	FileType     string         `gorm:"size:128" json:"fileType"`
	FileSize     int64          `gorm:"not null;default:0" json:"fileSize"`
	Content      []byte         `json:"content"`
	ContentKey   string         `gorm:"size:512" json:"-"`
	Status       DocumentStatus `gorm:"size:32;not null;default:pending_review;index" json:"status"`
	UploadedByID string         `gorm:"size:64;not null" json:"uploadedById"`
	UploadedAt   time.Time      `gorm:"not null" json:"uploadedAt"`
	ReviewedByID *string        `gorm:"size:64" json:"reviewedById"`
	ReviewedAt   *time.Time     `json:"reviewedAt"`
	Comments     string         `json:"comments"`
	Checklist    JSON           `json:"checklist"`
}

// Stakeholder is a user's membership on a project.
// A user appears at most once per project.
type Stakeholder struct {
	ID                 uint64                        `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID          uint64                        `gorm:"not null;uniqueIndex:idx_stakeholder_member,priority:1" json:"projectId"`
	UserID             string                        `gorm:"size:64;not null;uniqueIndex:idx_stakeholder_member,priority:2" json:"userId"`
	UserEmail          string                        `gorm:"size:255" json:"userEmail"`
	UserName           string                        `gorm:"size:255" json:"userName"`
	Roles              datatypes.JSONSlice[Role]     `json:"roles"`
	AssignedCategories datatypes.JSONSlice[Category] `json:"assignedCategories"`
	AddedByID          string                        `gorm:"size:64;not null" json:"addedById"`
	AddedAt            time.Time                     `gorm:"not null" json:"addedAt"`
}

// StakeholderTask is work assigned to a stakeholder.
// ProjectID is denormalized from the stakeholder for listing and cascades.
type StakeholderTask struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StakeholderID    uint64     `gorm:"not null;index" json:"stakeholderId"`
	ProjectID        uint64     `gorm:"not null;index" json:"projectId"`
	TaskType         TaskType   `gorm:"size:32;not null" json:"taskType"`
	DocumentCategory *Category  `gorm:"size:64" json:"documentCategory"`
	Description      string     `gorm:"not null" json:"description"`
	Status           TaskStatus `gorm:"size:32;not null;default:pending" json:"status"`
	DueDate          *time.Time `json:"dueDate"`
	CreatedByID      string     `gorm:"size:64;not null" json:"createdById"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ActivityLog is an append-only audit entry for a project
type ActivityLog struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID    uint64    `gorm:"not null;index:idx_activity_project,priority:1" json:"projectId"`
	UserID       string    `gorm:"size:64;not null" json:"userId"`
	ActivityType string    `gorm:"size:64;not null" json:"activityType"`
	Description  string    `gorm:"not null" json:"description"`
	CreatedAt    time.Time `gorm:"index:idx_activity_project,priority:2" json:"createdAt"`
}

// Notification is an in-app message for a user
type Notification struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"userId"`
	Type      string    `gorm:"size:64;not null" json:"type"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `gorm:"not null;default:false" json:"isRead"`
	Metadata  JSON      `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

// All lists every model in dependency order for migrations
func All() []interface{} {
	return []interface{}{
		&Project{},
		&Document{},
		&Stakeholder{},
		&StakeholderTask{},
		&ActivityLog{},
		&Notification{},
	}
}

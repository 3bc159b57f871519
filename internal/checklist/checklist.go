// checklist.go
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

// Package checklist renders, encodes and evaluates the per-category review
// checklists that gate document approval.
//
// The text encoding is the legacy comments format:
//
//	optional reviewer note
//
//	Fire Protection Review Checklist
//	[x] Sprinkler design criteria stated
//	[ ] Hydraulic calculations provided
package checklist

import (
	"strings"
)

const (
	markerChecked   = "[x]"
	markerUnchecked = "[ ]"
)

// Item is one checkable line of a checklist
type Item struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// Checklist is a titled, ordered list of items
type Checklist struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Clone returns a copy that shares no item storage with c
func (c Checklist) Clone() Checklist {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Checklist{Title: c.Title, Items: items}
}

// Counts returns the number of checked items and the total
func (c Checklist) Counts() (checked, total int) {
	for _, it := range c.Items {
		if it.Checked {
			checked++
		}
	}
	return checked, len(c.Items)
}

// IsComplete reports whether every item is checked.
// An empty checklist is never complete.
func IsComplete(c Checklist) bool {
	if len(c.Items) == 0 {
		return false
	}
	for _, it := range c.Items {
		if !it.Checked {
			return false
		}
	}
	return true
}

// Serialize encodes c as text, prefixed by note and a blank line when note is non-empty
func Serialize(c Checklist, note string) string {
	var b strings.Builder
	if note = strings.TrimSpace(note); note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	b.WriteString(c.Title)
	for _, it := range c.Items {
		b.WriteByte('\n')
		if it.Checked {
			b.WriteString(markerChecked)
		} else {
			b.WriteString(markerUnchecked)
		}
		b.WriteByte(' ')
		b.WriteString(it.Label)
	}
	return b.String()
}

// Parse decodes the text encoding. The title is the non-empty line just above
// the first item line. Parse returns nil when the text holds no item lines.
func Parse(text string) *Checklist {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		result    *Checklist
		lastPlain string
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, checked, ok := parseItemLine(line)
		if !ok {
			if result == nil {
				lastPlain = line
			}
			continue
		}
		if result == nil {
			result = &Checklist{Title: lastPlain}
		}
		result.Items = append(result.Items, Item{Label: label, Checked: checked})
	}

	return result
}

func parseItemLine(line string) (label string, checked bool, ok bool) {
	if len(line) < len(markerChecked) {
		return "", false, false
	}
	switch strings.ToLower(line[:len(markerChecked)]) {
	case markerChecked:
		checked = true
	case markerUnchecked:
	default:
		return "", false, false
	}
	label = strings.TrimSpace(line[len(markerChecked):])
	if label == "" {
		return "", false, false
	}
	return label, checked, true
}

// Merge carries check states from overlay onto a copy of base.
// Items match by id first, then by case-insensitive label.
// Overlay items with no match in base are ignored and base items with no
// match keep their state, so base decides the shape of the result.
func Merge(base Checklist, overlay *Checklist) Checklist {
	merged := base.Clone()
	if overlay == nil {
		return merged
	}

	for i := range merged.Items {
		if state, ok := find(overlay.Items, merged.Items[i]); ok {
			merged.Items[i].Checked = state.Checked
		}
	}
	return merged
}

func find(items []Item, target Item) (Item, bool) {
	if target.ID != "" {
		for _, it := range items {
			if it.ID == target.ID {
				return it, true
			}
		}
	}
	key := labelKey(target.Label)
	for _, it := range items {
		if labelKey(it.Label) == key {
			return it, true
		}
	}
	return Item{}, false
}

func labelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

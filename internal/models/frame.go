package models

import (
	"fmt"
	"slices"
	"strings"
)

// WorkItem is a discovered unit of analysis (one frame of a design file).
type WorkItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PageName string `json:"page_name,omitempty"`
	NodeType string `json:"node_type,omitempty"`
}

// Component is a UI element recognized in a frame.
type Component struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Interactive bool   `json:"interactive,omitempty"`
}

// UIState is a visual or behavioral state shown or implied by a frame.
type UIState struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Interaction links a user trigger to its effect.
type Interaction struct {
	Trigger string `json:"trigger"`
	Action  string `json:"action"`
	Target  string `json:"target,omitempty"`
}

// FrameSpec is the typed result of analyzing one frame.
type FrameSpec struct {
	FrameID       string        `json:"frame_id" yaml:"frame_id"`
	FrameName     string        `json:"frame_name" yaml:"frame_name"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	Components    []Component   `json:"components" yaml:"components"`
	BusinessRules []string      `json:"business_rules" yaml:"business_rules"`
	States        []UIState     `json:"states" yaml:"states"`
	Interactions  []Interaction `json:"interactions" yaml:"interactions"`
	RawText       string        `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
}

// IsEmpty reports whether no structure was extracted.
func (f FrameSpec) IsEmpty() bool {
	return strings.TrimSpace(f.Description) == "" &&
		len(f.Components) == 0 &&
		len(f.BusinessRules) == 0 &&
		len(f.States) == 0 &&
		len(f.Interactions) == 0
}

// SearchableText flattens the spec into the text that gets embedded.
func (f FrameSpec) SearchableText() string {
	var b strings.Builder
	if f.FrameName != "" {
		fmt.Fprintf(&b, "Frame: %s\n", f.FrameName)
	}
	if d := strings.TrimSpace(f.Description); d != "" {
		fmt.Fprintf(&b, "%s\n", d)
	}
	for _, c := range f.Components {
		line := c.Name
		if c.Type != "" {
			line += " (" + c.Type + ")"
		}
		if c.Description != "" {
			line += ": " + c.Description
		}
		fmt.Fprintf(&b, "Component: %s\n", line)
	}
	for _, r := range f.BusinessRules {
		fmt.Fprintf(&b, "Rule: %s\n", r)
	}
	for _, s := range f.States {
		if s.Description != "" {
			fmt.Fprintf(&b, "State: %s: %s\n", s.Name, s.Description)
		} else {
			fmt.Fprintf(&b, "State: %s\n", s.Name)
		}
	}
	for _, i := range f.Interactions {
		line := i.Trigger + " -> " + i.Action
		if i.Target != "" {
			line += " (" + i.Target + ")"
		}
		fmt.Fprintf(&b, "Interaction: %s\n", line)
	}
	return strings.TrimSpace(b.String())
}

// Clone returns a deep copy of the spec. Empty lists stay empty, not nil.
func (f FrameSpec) Clone() FrameSpec {
	out := f
	out.Components = slices.Clone(f.Components)
	out.BusinessRules = slices.Clone(f.BusinessRules)
	out.States = slices.Clone(f.States)
	out.Interactions = slices.Clone(f.Interactions)
	return out
}

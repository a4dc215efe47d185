package types

import "strings"

// Parameter describes one argument of an action.
//
// Type is a primitive tag (Integer, Double, Boolean, String and their
// aliases), a collection tag starting with "List" or "Array", or the name of
// an object type registered with the schema registry. Items is only set for
// collections and describes every element.
type Parameter struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Required bool       `json:"required"`
	Items    *Parameter `json:"items,omitempty"`
}

// IsCollection reports whether the parameter's type denotes a list
func (p Parameter) IsCollection() bool {
	return strings.HasPrefix(p.Type, "List") || strings.HasPrefix(p.Type, "Array")
}

// ActionSignature maps parameter names to their declarations
type ActionSignature map[string]Parameter

// Action is a named callable exposed by an agent
type Action struct {
	Name       string          `json:"name"`
	Parameters ActionSignature `json:"parameters"`
	Result     *Parameter      `json:"result,omitempty"`
}

// AgentDescriptor describes one agent hosted by a container
type AgentDescriptor struct {
	AgentID     string   `json:"agentId"`
	AgentType   string   `json:"agentType"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions"`
}

// Action looks up an action by name
func (a AgentDescriptor) Action(name string) (Action, bool) {
	for _, action := range a.Actions {
		if action.Name == name {
			return action, true
		}
	}
	return Action{}, false
}

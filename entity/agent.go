package entity

import (
	"strings"

	"github.com/habiliai/nativeagent/config"
)

type Mode string

const (
	ModeChat    Mode = "chat"
	ModeLogic   Mode = "logic"
	ModeMath    Mode = "math"
	ModeCode    Mode = "code"
	ModeEmotion Mode = "emotion"
)

var Modes = []Mode{ModeChat, ModeLogic, ModeMath, ModeCode, ModeEmotion}

func (m Mode) Valid() bool {
	for _, v := range Modes {
		if v == m {
			return true
		}
	}
	return false
}

const (
	DefaultAgentName        = "Unnamed Agent"
	DefaultAgentRole        = "General Assistant"
	DefaultAgentDescription = "No description provided."
	DefaultAgentPersona     = "A helpful AI assistant."
)

type Agent struct {
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Description   string            `json:"description"`
	Persona       string            `json:"persona"`
	Capabilities  []Mode            `json:"capabilities"`
	KnowledgeBase []string          `json:"knowledgeBase,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func AgentFromConfig(c config.AgentConfig) Agent {
	agent := Agent{
		Name:          c.Name,
		Role:          c.Role,
		Description:   c.Description,
		Persona:       c.Persona,
		KnowledgeBase: c.KnowledgeBase,
		Metadata:      c.Metadata,
	}
	for _, capability := range c.Capabilities {
		agent.Capabilities = append(agent.Capabilities, Mode(strings.ToLower(strings.TrimSpace(capability))))
	}
	return agent
}

// Normalize fills in defaults for missing fields and drops unknown capabilities.
// The receiver is not modified.
func (a Agent) Normalize() Agent {
	out := a
	out.Name = orDefault(a.Name, DefaultAgentName)
	out.Role = orDefault(a.Role, DefaultAgentRole)
	out.Description = orDefault(a.Description, DefaultAgentDescription)
	out.Persona = orDefault(a.Persona, DefaultAgentPersona)

	out.Capabilities = nil
	for _, m := range a.Capabilities {
		if m.Valid() {
			out.Capabilities = append(out.Capabilities, m)
		}
	}
	if len(out.Capabilities) == 0 {
		out.Capabilities = []Mode{ModeChat}
	}

	if a.KnowledgeBase != nil {
		out.KnowledgeBase = append([]string(nil), a.KnowledgeBase...)
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func (a Agent) CapabilityNames() []string {
	names := make([]string, 0, len(a.Capabilities))
	for _, m := range a.Capabilities {
		names = append(names, string(m))
	}
	return names
}

func (a Agent) DefaultMode() Mode {
	if len(a.Capabilities) == 0 {
		return ModeChat
	}
	return a.Capabilities[0]
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

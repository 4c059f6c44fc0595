package config

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/nativeagent/errors"
)

type AgentConfig struct {
	Name          string            `yaml:"name"`
	Role          string            `yaml:"role"`
	Description   string            `yaml:"description"`
	Persona       string            `yaml:"persona"`
	Capabilities  []string          `yaml:"capabilities"`
	KnowledgeBase []string          `yaml:"knowledgeBase"`
	Metadata      map[string]string `yaml:"metadata"`
}

func LoadAgentFromFile(file string) (agent AgentConfig, err error) {
	var yamlBytes []byte
	if yamlBytes, err = os.ReadFile(file); err != nil {
		err = errors.Wrapf(err, "failed to read file %s", file)
		return
	}

	if err = yaml.Unmarshal(yamlBytes, &agent); err != nil {
		err = errors.Wrapf(err, "failed to unmarshal file %s", file)
		return
	}

	return
}

func LoadAgentsFromFiles(files []string) ([]AgentConfig, error) {
	agents := make([]AgentConfig, 0, len(files))
	for _, file := range files {
		agent, err := LoadAgentFromFile(file)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

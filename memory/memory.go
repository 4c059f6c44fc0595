package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/habiliai/nativeagent/internal/stringutils"
)

type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

const NamespacePrefix = "agent_memory_"

// NamespaceKey maps an agent name to its persisted key: lowercase, whitespace runs replaced by '_'.
func NamespaceKey(agentName string) string {
	return NamespacePrefix + stringutils.CollapseWhitespace(strings.ToLower(agentName), "_")
}

func Contents(records []Record) []string {
	contents := make([]string, len(records))
	for i, r := range records {
		contents[i] = r.Content
	}
	return contents
}

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

func newRecord(content string) Record {
	idNodeOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		idNode = node
	})
	return Record{
		ID:        idNode.Generate().String(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

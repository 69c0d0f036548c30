package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodesMu sync.Mutex
	nodes   = map[int64]*snowflake.Node{}
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewSnowflakeID generates a snowflake ID using a node ID from the
// environment variable SNOWFLAKE_NODE (node 1 when unset or invalid).
func NewSnowflakeID() int64 {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return NewSnowflakeIDWithNode(1)
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return NewSnowflakeIDWithNode(1)
	}
	return NewSnowflakeIDWithNode(nodeID)
}

// NewSnowflakeIDWithNode generates a snowflake ID using the provided node ID.
// Nodes are kept per process so IDs generated in the same millisecond keep
// advancing the sequence. An out of range node falls back to node 1.
func NewSnowflakeIDWithNode(nodeID int64) int64 {
	if nodeID < 0 || nodeID > -1^(-1<<snowflake.NodeBits) {
		nodeID = 1
	}
	nodesMu.Lock()
	defer nodesMu.Unlock()
	node, ok := nodes[nodeID]
	if !ok {
		var err error
		if node, err = snowflake.NewNode(nodeID); err != nil {
			panic(err)
		}
		nodes[nodeID] = node
	}
	return node.Generate().Int64()
}
